//go:build !linux

package hal

// The hardware backends need the linux gpio drivers. Elsewhere only the
// emulator is available.

func openGpiodInputs(string) (Inputs, error) { return nil, ErrUnsupported }

func openGpiodOutputs(string) (Outputs, error) { return nil, ErrUnsupported }

func openGpiomemOutputs() (Outputs, error) { return nil, ErrUnsupported }

func openRpioOutputs() (Outputs, error) { return nil, ErrUnsupported }
