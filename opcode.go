package xim

// Opcode is the one-byte major opcode that begins every XIM message.
type Opcode uint8

// The classic ICCCM XIM opcode table. Values are cross-checked against
// the byte fixtures in original_source/xim-parser/src/lib.rs wherever
// a fixture exists (Connect, ConnectReply, Open, OpenReply,
// QueryExtension, SetEventMask); the rest follow the well-known XIM
// protocol numbering the fixtures are drawn from.
const (
	OpConnect              Opcode = 1
	OpConnectReply         Opcode = 2
	OpDisconnect           Opcode = 3
	OpDisconnectReply      Opcode = 4
	OpAuthRequired         Opcode = 10
	OpAuthReply            Opcode = 11
	OpAuthNext             Opcode = 12
	OpAuthSetup            Opcode = 13
	OpAuthNG               Opcode = 14
	OpError                Opcode = 20
	OpOpen                 Opcode = 30
	OpOpenReply            Opcode = 31
	OpClose                Opcode = 32
	OpCloseReply           Opcode = 33
	OpRegisterTriggerkeys  Opcode = 34
	OpTriggerNotify        Opcode = 35
	OpTriggerNotifyReply   Opcode = 36
	OpSetEventMask         Opcode = 37
	OpEncodingNegotiation  Opcode = 38
	OpEncodingNegotiationReply Opcode = 39
	OpQueryExtension       Opcode = 40
	OpQueryExtensionReply  Opcode = 41
	OpSetIMValues          Opcode = 42
	OpSetIMValuesReply     Opcode = 43
	OpGetIMValues          Opcode = 44
	OpGetIMValuesReply     Opcode = 45
	OpCreateIC             Opcode = 50
	OpCreateICReply        Opcode = 51
	OpDestroyIC            Opcode = 52
	OpDestroyICReply       Opcode = 53
	OpSetICValues          Opcode = 54
	OpSetICValuesReply     Opcode = 55
	OpGetICValues          Opcode = 56
	OpGetICValuesReply     Opcode = 57
	OpSetICFocus           Opcode = 58
	OpUnsetICFocus         Opcode = 59
	OpForwardEvent         Opcode = 60
	OpSyncReply            Opcode = 62
	OpCommit               Opcode = 63
	OpResetIC              Opcode = 64
	OpResetICReply         Opcode = 65
	OpGeometry             Opcode = 70
	OpStr                  Opcode = 71
	OpPreeditStart         Opcode = 73
	OpPreeditStartReply    Opcode = 74
	OpPreeditDraw          Opcode = 75
	OpPreeditCaret         Opcode = 76
	OpPreeditCaretReply    Opcode = 77
	OpPreeditDone          Opcode = 78
	OpStatusStart          Opcode = 79
	OpStatusDraw           Opcode = 80
	OpStatusDone           Opcode = 81
	OpPreeditState         Opcode = 82
	OpSync                 Opcode = 61
)

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "Unknown"
}

var opcodeNames = map[Opcode]string{
	OpConnect:                  "Connect",
	OpConnectReply:             "ConnectReply",
	OpDisconnect:               "Disconnect",
	OpDisconnectReply:          "DisconnectReply",
	OpAuthRequired:             "AuthRequired",
	OpAuthReply:                "AuthReply",
	OpAuthNext:                 "AuthNext",
	OpAuthSetup:                "AuthSetup",
	OpAuthNG:                   "AuthNG",
	OpError:                    "Error",
	OpOpen:                     "Open",
	OpOpenReply:                "OpenReply",
	OpClose:                    "Close",
	OpCloseReply:               "CloseReply",
	OpRegisterTriggerkeys:      "RegisterTriggerkeys",
	OpTriggerNotify:            "TriggerNotify",
	OpTriggerNotifyReply:       "TriggerNotifyReply",
	OpSetEventMask:             "SetEventMask",
	OpEncodingNegotiation:      "EncodingNegotiation",
	OpEncodingNegotiationReply: "EncodingNegotiationReply",
	OpQueryExtension:           "QueryExtension",
	OpQueryExtensionReply:      "QueryExtensionReply",
	OpSetIMValues:              "SetIMValues",
	OpSetIMValuesReply:         "SetIMValuesReply",
	OpGetIMValues:              "GetIMValues",
	OpGetIMValuesReply:         "GetIMValuesReply",
	OpCreateIC:                 "CreateIC",
	OpCreateICReply:            "CreateICReply",
	OpDestroyIC:                "DestroyIC",
	OpDestroyICReply:           "DestroyICReply",
	OpSetICValues:              "SetICValues",
	OpSetICValuesReply:         "SetICValuesReply",
	OpGetICValues:              "GetICValues",
	OpGetICValuesReply:         "GetICValuesReply",
	OpSetICFocus:               "SetICFocus",
	OpUnsetICFocus:             "UnsetICFocus",
	OpForwardEvent:             "ForwardEvent",
	OpSyncReply:                "SyncReply",
	OpCommit:                   "Commit",
	OpResetIC:                  "ResetIC",
	OpResetICReply:             "ResetICReply",
	OpGeometry:                 "Geometry",
	OpStr:                      "Str",
	OpPreeditStart:             "PreeditStart",
	OpPreeditStartReply:        "PreeditStartReply",
	OpPreeditDraw:              "PreeditDraw",
	OpPreeditCaret:             "PreeditCaret",
	OpPreeditCaretReply:        "PreeditCaretReply",
	OpPreeditDone:              "PreeditDone",
	OpStatusStart:              "StatusStart",
	OpStatusDraw:               "StatusDraw",
	OpStatusDone:               "StatusDone",
	OpPreeditState:             "PreeditState",
	OpSync:                     "Sync",
}
