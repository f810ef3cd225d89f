package errortypes

// ConfigurationError should be used for malformed deployment configuration, such as
// tier tables with discounts outside [0,1) or volume breakpoints out of order.
//
// Configuration errors are only produced at startup and are fatal: the server must
// refuse to start rather than make pricing decisions from a broken table.
type ConfigurationError struct {
	Message string
}

func (err *ConfigurationError) Error() string {
	return err.Message
}

func (err *ConfigurationError) Code() int {
	return ConfigurationErrorCode
}

func (err *ConfigurationError) Severity() Severity {
	return SeverityFatal
}

// BadInput should be used when returning errors which are caused by bad input,
// such as a proposal missing its product reference or requested volume.
// It should _not_ be used if the error is a server-side issue.
type BadInput struct {
	Message string
}

func (err *BadInput) Error() string {
	return err.Message
}

func (err *BadInput) Code() int {
	return BadInputErrorCode
}

func (err *BadInput) Severity() Severity {
	return SeverityFatal
}

// Timeout should be used to flag that an external lookup (product catalog,
// capability embeddings, allocation ledger) did not return before its deadline.
type Timeout struct {
	Message string
}

func (err *Timeout) Error() string {
	return err.Message
}

func (err *Timeout) Code() int {
	return TimeoutErrorCode
}

func (err *Timeout) Severity() Severity {
	return SeverityFatal
}

// DimensionMismatch should be used when a buyer embedding and a seller capability
// embedding disagree on vector dimension. It fails the single validation call;
// the negotiation flow degrades to its "not requested" coverage sentinel instead
// of failing the proposal.
type DimensionMismatch struct {
	Message string
}

func (err *DimensionMismatch) Error() string {
	return err.Message
}

func (err *DimensionMismatch) Code() int {
	return DimensionMismatchErrorCode
}

func (err *DimensionMismatch) Severity() Severity {
	return SeverityWarning
}

// AllocationUnavailable should be used when the inventory allocation ledger cannot
// reserve the requested volume. It never fails the flow; the decision is downgraded
// to a counter-offer for availability.
type AllocationUnavailable struct {
	Message string
}

func (err *AllocationUnavailable) Error() string {
	return err.Message
}

func (err *AllocationUnavailable) Code() int {
	return AllocationUnavailableErrorCode
}

func (err *AllocationUnavailable) Severity() Severity {
	return SeverityWarning
}
