// Package wire implements the SS node's framed binary protocol: a fixed
// 8-byte header followed by a type-specific fixed-layout payload, in host
// byte order. See HeaderSize, MessageType, and the payload structs below.
package wire

// MessageType identifies the kind of payload following a Header. Ranges are
// semantic, not load-bearing: the dispatcher (pkg/dispatch) switches on
// exact values, but groups them by origin for routing.
type MessageType uint32

const (
	// Client -> SS
	C2SRead MessageType = iota + 1
	C2SStream
	C2SWriteStart
	C2SWriteData
	C2SWriteEnd
	C2SUndo
	C2SCheckpointOp

	// NS -> SS
	N2SCreateFile
	N2SDeleteFile
	N2SGetInfo
	N2SExecGetContent
	N2SSyncFromBackup
	N2SSyncToPrimary
	N2SReReplicateAll
	N2SUpdateBackup
	N2SRegisterAck

	// SS -> NS
	S2NRegister
	S2NHeartbeat
	S2NAckOK
	S2NAckFail

	// Peer <-> peer
	S2SReplicateFile
	S2SDeleteFile
	S2SStartRecovery
	S2SFileList
	S2SAck
	S2SRecoveryComplete

	// SS -> client
	S2CGenericOK
	S2CGenericFail
	S2CWriteLocked
	S2CFileNotFound
)

// String returns a human-readable name for logging; never used for wire
// encoding.
func (t MessageType) String() string {
	switch t {
	case C2SRead:
		return "C2S_READ"
	case C2SStream:
		return "C2S_STREAM"
	case C2SWriteStart:
		return "C2S_WRITE_START"
	case C2SWriteData:
		return "C2S_WRITE_DATA"
	case C2SWriteEnd:
		return "C2S_WRITE_END"
	case C2SUndo:
		return "C2S_UNDO"
	case C2SCheckpointOp:
		return "C2S_CHECKPOINT_OP"
	case N2SCreateFile:
		return "N2S_CREATE_FILE"
	case N2SDeleteFile:
		return "N2S_DELETE_FILE"
	case N2SGetInfo:
		return "N2S_GET_INFO"
	case N2SExecGetContent:
		return "N2S_EXEC_GET_CONTENT"
	case N2SSyncFromBackup:
		return "N2S_SYNC_FROM_BACKUP"
	case N2SSyncToPrimary:
		return "N2S_SYNC_TO_PRIMARY"
	case N2SReReplicateAll:
		return "N2S_RE_REPLICATE_ALL"
	case N2SUpdateBackup:
		return "N2S_UPDATE_BACKUP"
	case N2SRegisterAck:
		return "N2S_REGISTER_ACK"
	case S2NRegister:
		return "S2N_REGISTER"
	case S2NHeartbeat:
		return "S2N_HEARTBEAT"
	case S2NAckOK:
		return "S2N_ACK_OK"
	case S2NAckFail:
		return "S2N_ACK_FAIL"
	case S2SReplicateFile:
		return "S2S_REPLICATE_FILE"
	case S2SDeleteFile:
		return "S2S_DELETE_FILE"
	case S2SStartRecovery:
		return "S2S_START_RECOVERY"
	case S2SFileList:
		return "S2S_FILE_LIST"
	case S2SAck:
		return "S2S_ACK"
	case S2SRecoveryComplete:
		return "S2S_RECOVERY_COMPLETE"
	case S2CGenericOK:
		return "S2C_GENERIC_OK"
	case S2CGenericFail:
		return "S2C_GENERIC_FAIL"
	case S2CWriteLocked:
		return "S2C_WRITE_LOCKED"
	case S2CFileNotFound:
		return "S2C_FILE_NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

const (
	// MaxFilename bounds the length of a filename field in a fixed-width
	// payload struct.
	MaxFilename = 255
	// MaxUsername bounds the length of an owner field.
	MaxUsername = 64
	// MaxIP bounds the length of a dotted-quad or hostname IP field.
	MaxIP = 16
)
