package kernel

// Mode is the authentication state of the session.
type Mode uint8

const (
	// Ghost is the default, unauthenticated mode. Nothing real is visible.
	Ghost Mode = iota
	// Kernel is the fully authenticated mode.
	Kernel
	// Duress is authenticated-under-coercion. A decoy view is presented and
	// real data stays isolated.
	Duress
)

// Modes lists every mode in declaration order.
var Modes = []Mode{Ghost, Kernel, Duress}

func (m Mode) String() string {
	switch m {
	case Ghost:
		return "ghost"
	case Kernel:
		return "kernel"
	case Duress:
		return "duress"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	switch m {
	case Ghost, Kernel, Duress:
		return true
	default:
		return false
	}
}

// Unlocked reports whether m presents any unlocked view, real or decoy.
func (m Mode) Unlocked() bool {
	switch m {
	case Kernel, Duress:
		return true
	case Ghost:
		return false
	default:
		return false
	}
}
