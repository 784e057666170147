package flash

import (
	"context"
	"fmt"
)

// A Command is the numeric code of a control operation.
type Command int

// Control command codes.
const (
	CmdGetStatus  Command = 1
	CmdGetPointer Command = 2
	CmdSetPointer Command = 3
	CmdErase      Command = 4
)

func (c Command) String() string {
	switch c {
	case CmdGetStatus:
		return "get-status"
	case CmdGetPointer:
		return "get-pointer"
	case CmdSetPointer:
		return "set-pointer"
	case CmdErase:
		return "erase"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// Ioctl runs a control command. Get-status returns 1 when busy and 0 when
// idle. Get-pointer and set-pointer return the page index. Erase returns 0.
func (d *Driver) Ioctl(ctx context.Context, cmd Command, arg int) (int, error) {
	switch cmd {
	case CmdGetStatus:
		if d.Status() == StatusBusy {
			return 1, nil
		}

		return 0, nil
	case CmdGetPointer:
		return d.Pointer(), nil
	case CmdSetPointer:
		d.lock.Lock()
		defer d.lock.Unlock()

		if err := d.state.setPointer(arg); err != nil {
			return 0, err
		}

		return d.state.page(), nil
	case CmdErase:
		if err := d.Erase(ctx); err != nil {
			return 0, err
		}

		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownCommand, int(cmd))
	}
}
