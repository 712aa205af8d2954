package wire

// Command is the one-byte frame command code, grouped by hex nibble
// per spec.md section 4.3.
type Command uint8

const (
	// System 0x0X
	CmdNop Command = 0x00 + iota
	CmdPing
	CmdPong
	CmdGetCaps
	CmdCapsResp
	CmdReset
	CmdBootloader
)

const (
	// Config 0x1X
	CmdGetConfig Command = 0x10 + iota
	CmdConfigData
	CmdSetConfig
	CmdConfigAck
	CmdSaveConfig
	CmdLoadConfig
	CmdClearConfig
)

const (
	// Telemetry 0x2X
	CmdTelemStart Command = 0x20 + iota
	CmdTelemStop
	CmdTelemData
	CmdTelemConfig
)

const (
	// Channel 0x3X
	CmdChGetValue Command = 0x30 + iota
	CmdChSetValue
	CmdChValueResp
	CmdChGetInfo
	CmdChInfoResp
	CmdChGetList
	CmdChListResp
)

const (
	// Debug 0x4X
	CmdDebugConfig Command = 0x40 + iota
	CmdDebugMsg
	CmdDebugVarGet
	CmdDebugVarSet
	CmdDebugVarResp
)

const (
	// CAN 0x5X
	CmdCanSend Command = 0x50 + iota
	CmdCanRecv
	CmdCanConfig
	CmdCanStatus
)

const (
	// Firmware 0x6X
	CmdFwBegin Command = 0x60 + iota
	CmdFwData
	CmdFwEnd
	CmdFwVerify
	CmdFwStatus
)

const (
	// Log 0x7X
	CmdLogStart Command = 0x70 + iota
	CmdLogStop
	CmdLogStatus
	CmdLogGetData
	CmdLogData
	CmdLogClear
)

const (
	CmdError  Command = 0xF0
	CmdStatus Command = 0xF1
)
