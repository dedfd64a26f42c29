package protocol

import (
	"fmt"
	"strings"
)

// maxSummaryBytes is how much payload Summary shows.
const maxSummaryBytes = 4

// CommandName returns a short name for a command code.
func CommandName(cmd uint8) string {
	switch cmd {
	case CmdGetSettings:
		return "GetSet"
	case CmdSetSettings:
		return "SetSet"
	case CmdGetStatus:
		return "GetStat"
	case CmdPing:
		return "Ping"
	case CmdFactoryReset:
		return "FctRst"
	case CmdGetVersion:
		return "GetVer"
	case CmdDiscover:
		return "Discvr"
	default:
		return fmt.Sprintf("Cmd%02X", cmd)
	}
}

// StatusName returns a short name for a status code.
func StatusName(status uint8) string {
	switch status {
	case StatusOK:
		return "OK"
	case StatusError:
		return "Err"
	case StatusInvalidCmd:
		return "InvCmd"
	case StatusInvalidData:
		return "InvData"
	case StatusNotFound:
		return "NotFnd"
	case StatusNoSpace:
		return "NoSpace"
	case StatusVersionMismatch:
		return "VerMis"
	case StatusCRCError:
		return "CRC"
	default:
		return fmt.Sprintf("Sts%02X", status)
	}
}

// Summary formats the head of a frame as hex for logs.
// Format: AA CODE LEN_LO LEN_HI [first payload bytes]..
func Summary(code uint8, payload []byte) string {
	var b strings.Builder

	n := len(payload)
	fmt.Fprintf(&b, "%02X %02X %02X%02X", SyncByte, code, uint8(n), uint8(n>>8))

	if n > 0 {
		b.WriteByte(' ')
	}
	for i := 0; i < n && i < maxSummaryBytes; i++ {
		fmt.Fprintf(&b, "%02X", payload[i])
	}
	if n > maxSummaryBytes {
		b.WriteString("..")
	}

	return b.String()
}
