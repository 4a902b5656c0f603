package stand

// Operation names a logical command against the stand, independent of the
// method alias a particular controller version exposes for it.
type Operation string

const (
	// OpRaise raises the stand and blocks until it has moved.
	OpRaise Operation = "raise"
	// OpLower lowers the stand and blocks until it has moved.
	OpLower Operation = "lower"
	// OpStatus reads the stand state.
	OpStatus Operation = "status"
	// OpBattery reads the battery level.
	OpBattery Operation = "battery"
	// OpRaiseNoWait asks the stand to raise without waiting for the motion.
	OpRaiseNoWait Operation = "no-wait-raise"
	// OpLowerNoWait asks the stand to lower without waiting for the motion.
	OpLowerNoWait Operation = "no-wait-lower"
	// OpWaitTransaction blocks until a transaction code resolves.
	OpWaitTransaction Operation = "wait-transaction"
	// OpGetTransaction reads the current outcome of a transaction code.
	OpGetTransaction Operation = "get-transaction"
)

// NoWait returns the fire-and-forget variant of an actuation, if there is one.
func (o Operation) NoWait() (Operation, bool) {
	switch o {
	case OpRaise:
		return OpRaiseNoWait, true
	case OpLower:
		return OpLowerNoWait, true
	default:
		return "", false
	}
}

// Actuates reports whether the operation physically moves the stand.
func (o Operation) Actuates() bool {
	switch o {
	case OpRaise, OpLower, OpRaiseNoWait, OpLowerNoWait:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (o Operation) String() string {
	return string(o)
}
