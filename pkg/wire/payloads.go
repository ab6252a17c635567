package wire

import (
	"encoding/binary"
	"fmt"
)

// putString writes s into dst, null-padding to dst's fixed width. s is
// truncated if it does not fit (callers validate length before this point).
func putString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// getString reads a null-padded fixed-width string field.
func getString(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}
	return string(src)
}

// FileMetadataWire is the fixed-layout wire form of a C3 FileMetadata
// record, used in FILE_LIST transfers and registration payloads.
type FileMetadataWire struct {
	Filename     [MaxFilename]byte
	Owner        [MaxUsername]byte
	FileSize     uint64
	WordCount    uint64
	CharCount    uint64
	LastModified int64
	LastAccess   int64
}

// FileMetadataWireSize is the encoded size of FileMetadataWire.
const FileMetadataWireSize = MaxFilename + MaxUsername + 8 + 8 + 8 + 8 + 8

// Encode serializes the record to its fixed-width wire form.
func (m FileMetadataWire) Encode() []byte {
	buf := make([]byte, FileMetadataWireSize)
	off := 0
	copy(buf[off:off+MaxFilename], m.Filename[:])
	off += MaxFilename
	copy(buf[off:off+MaxUsername], m.Owner[:])
	off += MaxUsername
	binary.NativeEndian.PutUint64(buf[off:off+8], m.FileSize)
	off += 8
	binary.NativeEndian.PutUint64(buf[off:off+8], m.WordCount)
	off += 8
	binary.NativeEndian.PutUint64(buf[off:off+8], m.CharCount)
	off += 8
	binary.NativeEndian.PutUint64(buf[off:off+8], uint64(m.LastModified))
	off += 8
	binary.NativeEndian.PutUint64(buf[off:off+8], uint64(m.LastAccess))
	return buf
}

// NewFileMetadataWire builds a FileMetadataWire from plain field values,
// validating that filename/owner fit within their fixed widths.
func NewFileMetadataWire(filename, owner string, size, words, chars uint64, mtime, atime int64) (FileMetadataWire, error) {
	var m FileMetadataWire
	if len(filename) >= MaxFilename {
		return m, fmt.Errorf("wire: filename %q exceeds %d bytes", filename, MaxFilename-1)
	}
	if len(owner) >= MaxUsername {
		return m, fmt.Errorf("wire: owner %q exceeds %d bytes", owner, MaxUsername-1)
	}
	putString(m.Filename[:], filename)
	putString(m.Owner[:], owner)
	m.FileSize = size
	m.WordCount = words
	m.CharCount = chars
	m.LastModified = mtime
	m.LastAccess = atime
	return m, nil
}

// DecodeFileMetadataWire parses a fixed-width FileMetadataWire from buf.
func DecodeFileMetadataWire(buf []byte) (FileMetadataWire, error) {
	var m FileMetadataWire
	if len(buf) < FileMetadataWireSize {
		return m, fmt.Errorf("wire: short FileMetadataWire buffer (%d bytes)", len(buf))
	}
	off := 0
	copy(m.Filename[:], buf[off:off+MaxFilename])
	off += MaxFilename
	copy(m.Owner[:], buf[off:off+MaxUsername])
	off += MaxUsername
	m.FileSize = binary.NativeEndian.Uint64(buf[off : off+8])
	off += 8
	m.WordCount = binary.NativeEndian.Uint64(buf[off : off+8])
	off += 8
	m.CharCount = binary.NativeEndian.Uint64(buf[off : off+8])
	off += 8
	m.LastModified = int64(binary.NativeEndian.Uint64(buf[off : off+8]))
	off += 8
	m.LastAccess = int64(binary.NativeEndian.Uint64(buf[off : off+8]))
	return m, nil
}

// FilenameStr returns the decoded filename.
func (m FileMetadataWire) FilenameStr() string { return getString(m.Filename[:]) }

// OwnerStr returns the decoded owner.
func (m FileMetadataWire) OwnerStr() string { return getString(m.Owner[:]) }

// ReplicateFileHeader is the S2S_REPLICATE_FILE payload, sent before the raw
// file bytes stream.
type ReplicateFileHeader struct {
	Filename [MaxFilename]byte
	Owner    [MaxUsername]byte
	FileSize uint64
}

// ReplicateFileHeaderSize is the encoded size of ReplicateFileHeader.
const ReplicateFileHeaderSize = MaxFilename + MaxUsername + 8

// Encode serializes the header.
func (h ReplicateFileHeader) Encode() []byte {
	buf := make([]byte, ReplicateFileHeaderSize)
	off := 0
	copy(buf[off:off+MaxFilename], h.Filename[:])
	off += MaxFilename
	copy(buf[off:off+MaxUsername], h.Owner[:])
	off += MaxUsername
	binary.NativeEndian.PutUint64(buf[off:off+8], h.FileSize)
	return buf
}

// NewReplicateFileHeader builds a ReplicateFileHeader, validating field widths.
func NewReplicateFileHeader(filename, owner string, size uint64) (ReplicateFileHeader, error) {
	var h ReplicateFileHeader
	if len(filename) >= MaxFilename {
		return h, fmt.Errorf("wire: filename %q exceeds %d bytes", filename, MaxFilename-1)
	}
	if len(owner) >= MaxUsername {
		return h, fmt.Errorf("wire: owner %q exceeds %d bytes", owner, MaxUsername-1)
	}
	putString(h.Filename[:], filename)
	putString(h.Owner[:], owner)
	h.FileSize = size
	return h, nil
}

// DecodeReplicateFileHeader parses a ReplicateFileHeader from buf.
func DecodeReplicateFileHeader(buf []byte) (ReplicateFileHeader, error) {
	var h ReplicateFileHeader
	if len(buf) < ReplicateFileHeaderSize {
		return h, fmt.Errorf("wire: short ReplicateFileHeader buffer (%d bytes)", len(buf))
	}
	off := 0
	copy(h.Filename[:], buf[off:off+MaxFilename])
	off += MaxFilename
	copy(h.Owner[:], buf[off:off+MaxUsername])
	off += MaxUsername
	h.FileSize = binary.NativeEndian.Uint64(buf[off : off+8])
	return h, nil
}

// FilenameStr returns the decoded filename.
func (h ReplicateFileHeader) FilenameStr() string { return getString(h.Filename[:]) }

// OwnerStr returns the decoded owner.
func (h ReplicateFileHeader) OwnerStr() string { return getString(h.Owner[:]) }

// DeleteFileHeader is the S2S_DELETE_FILE payload.
type DeleteFileHeader struct {
	Filename [MaxFilename]byte
}

// DeleteFileHeaderSize is the encoded size of DeleteFileHeader.
const DeleteFileHeaderSize = MaxFilename

// Encode serializes the header.
func (h DeleteFileHeader) Encode() []byte {
	buf := make([]byte, DeleteFileHeaderSize)
	copy(buf, h.Filename[:])
	return buf
}

// NewDeleteFileHeader builds a DeleteFileHeader, validating field width.
func NewDeleteFileHeader(filename string) (DeleteFileHeader, error) {
	var h DeleteFileHeader
	if len(filename) >= MaxFilename {
		return h, fmt.Errorf("wire: filename %q exceeds %d bytes", filename, MaxFilename-1)
	}
	putString(h.Filename[:], filename)
	return h, nil
}

// DecodeDeleteFileHeader parses a DeleteFileHeader from buf.
func DecodeDeleteFileHeader(buf []byte) (DeleteFileHeader, error) {
	var h DeleteFileHeader
	if len(buf) < DeleteFileHeaderSize {
		return h, fmt.Errorf("wire: short DeleteFileHeader buffer (%d bytes)", len(buf))
	}
	copy(h.Filename[:], buf[:DeleteFileHeaderSize])
	return h, nil
}

// FilenameStr returns the decoded filename.
func (h DeleteFileHeader) FilenameStr() string { return getString(h.Filename[:]) }

// StartRecoveryHeader is the S2S_START_RECOVERY payload.
type StartRecoveryHeader struct {
	SSID              int32
	IsPrimaryRecovery uint8 // bool, 1 byte, rest is padding
	_                 [3]byte
}

// StartRecoveryHeaderSize is the encoded size of StartRecoveryHeader.
const StartRecoveryHeaderSize = 4 + 1 + 3

// Encode serializes the header.
func (h StartRecoveryHeader) Encode() []byte {
	buf := make([]byte, StartRecoveryHeaderSize)
	binary.NativeEndian.PutUint32(buf[0:4], uint32(h.SSID))
	buf[4] = h.IsPrimaryRecovery
	return buf
}

// NewStartRecoveryHeader builds a StartRecoveryHeader.
func NewStartRecoveryHeader(ssID int32, isPrimaryRecovery bool) StartRecoveryHeader {
	var flag uint8
	if isPrimaryRecovery {
		flag = 1
	}
	return StartRecoveryHeader{SSID: ssID, IsPrimaryRecovery: flag}
}

// DecodeStartRecoveryHeader parses a StartRecoveryHeader from buf.
func DecodeStartRecoveryHeader(buf []byte) (StartRecoveryHeader, error) {
	var h StartRecoveryHeader
	if len(buf) < StartRecoveryHeaderSize {
		return h, fmt.Errorf("wire: short StartRecoveryHeader buffer (%d bytes)", len(buf))
	}
	h.SSID = int32(binary.NativeEndian.Uint32(buf[0:4]))
	h.IsPrimaryRecovery = buf[4]
	return h, nil
}

// IsPrimary reports whether the sender claims to be the backup doing
// primary recovery (the receiving node is thus the primary).
func (h StartRecoveryHeader) IsPrimary() bool { return h.IsPrimaryRecovery != 0 }

// FileListHeader is the S2S_FILE_LIST payload: a count followed, on the
// wire, by count FileMetadataWire records.
type FileListHeader struct {
	Count uint32
}

// FileListHeaderSize is the encoded size of FileListHeader.
const FileListHeaderSize = 4

// Encode serializes the header.
func (h FileListHeader) Encode() []byte {
	buf := make([]byte, FileListHeaderSize)
	binary.NativeEndian.PutUint32(buf[0:4], h.Count)
	return buf
}

// DecodeFileListHeader parses a FileListHeader from buf.
func DecodeFileListHeader(buf []byte) (FileListHeader, error) {
	var h FileListHeader
	if len(buf) < FileListHeaderSize {
		return h, fmt.Errorf("wire: short FileListHeader buffer (%d bytes)", len(buf))
	}
	h.Count = binary.NativeEndian.Uint32(buf[0:4])
	return h, nil
}

// PeerAddrHeader carries a single (ip, port) pair. It is the payload for
// N2S_UPDATE_BACKUP, N2S_RE_REPLICATE_ALL, and N2S_SYNC_FROM_BACKUP: NS
// telling this node about a peer address to act on.
type PeerAddrHeader struct {
	IP   [MaxIP]byte
	Port int32
}

// PeerAddrHeaderSize is the encoded size of PeerAddrHeader.
const PeerAddrHeaderSize = MaxIP + 4

// Encode serializes the header.
func (h PeerAddrHeader) Encode() []byte {
	buf := make([]byte, PeerAddrHeaderSize)
	copy(buf[0:MaxIP], h.IP[:])
	binary.NativeEndian.PutUint32(buf[MaxIP:MaxIP+4], uint32(h.Port))
	return buf
}

// NewPeerAddrHeader builds a PeerAddrHeader, validating the IP field width.
func NewPeerAddrHeader(ip string, port int32) (PeerAddrHeader, error) {
	var h PeerAddrHeader
	if len(ip) >= MaxIP {
		return h, fmt.Errorf("wire: ip %q exceeds %d bytes", ip, MaxIP-1)
	}
	putString(h.IP[:], ip)
	h.Port = port
	return h, nil
}

// DecodePeerAddrHeader parses a PeerAddrHeader from buf.
func DecodePeerAddrHeader(buf []byte) (PeerAddrHeader, error) {
	var h PeerAddrHeader
	if len(buf) < PeerAddrHeaderSize {
		return h, fmt.Errorf("wire: short PeerAddrHeader buffer (%d bytes)", len(buf))
	}
	copy(h.IP[:], buf[0:MaxIP])
	h.Port = int32(binary.NativeEndian.Uint32(buf[MaxIP : MaxIP+4]))
	return h, nil
}

// IPStr returns the decoded IP.
func (h PeerAddrHeader) IPStr() string { return getString(h.IP[:]) }

// RegisterRequest is the S2N_REGISTER payload. If FileCount > 0, that many
// FileMetadataWire records follow on the wire (used when an SS node
// re-registers with NS after a restart and already holds files).
type RegisterRequest struct {
	IP         [MaxIP]byte
	ClientPort int32
	BackupIP   [MaxIP]byte
	BackupPort int32
	FileCount  int32
}

// RegisterRequestSize is the encoded size of RegisterRequest.
const RegisterRequestSize = MaxIP + 4 + MaxIP + 4 + 4

// Encode serializes the request.
func (r RegisterRequest) Encode() []byte {
	buf := make([]byte, RegisterRequestSize)
	off := 0
	copy(buf[off:off+MaxIP], r.IP[:])
	off += MaxIP
	binary.NativeEndian.PutUint32(buf[off:off+4], uint32(r.ClientPort))
	off += 4
	copy(buf[off:off+MaxIP], r.BackupIP[:])
	off += MaxIP
	binary.NativeEndian.PutUint32(buf[off:off+4], uint32(r.BackupPort))
	off += 4
	binary.NativeEndian.PutUint32(buf[off:off+4], uint32(r.FileCount))
	return buf
}

// NewRegisterRequest builds a RegisterRequest, validating field widths.
func NewRegisterRequest(ip string, clientPort int32, backupIP string, backupPort, fileCount int32) (RegisterRequest, error) {
	var r RegisterRequest
	if len(ip) >= MaxIP {
		return r, fmt.Errorf("wire: ip %q exceeds %d bytes", ip, MaxIP-1)
	}
	if len(backupIP) >= MaxIP {
		return r, fmt.Errorf("wire: backup ip %q exceeds %d bytes", backupIP, MaxIP-1)
	}
	putString(r.IP[:], ip)
	r.ClientPort = clientPort
	putString(r.BackupIP[:], backupIP)
	r.BackupPort = backupPort
	r.FileCount = fileCount
	return r, nil
}

// DecodeRegisterRequest parses a RegisterRequest from buf.
func DecodeRegisterRequest(buf []byte) (RegisterRequest, error) {
	var r RegisterRequest
	if len(buf) < RegisterRequestSize {
		return r, fmt.Errorf("wire: short RegisterRequest buffer (%d bytes)", len(buf))
	}
	off := 0
	copy(r.IP[:], buf[off:off+MaxIP])
	off += MaxIP
	r.ClientPort = int32(binary.NativeEndian.Uint32(buf[off : off+4]))
	off += 4
	copy(r.BackupIP[:], buf[off:off+MaxIP])
	off += MaxIP
	r.BackupPort = int32(binary.NativeEndian.Uint32(buf[off : off+4]))
	off += 4
	r.FileCount = int32(binary.NativeEndian.Uint32(buf[off : off+4]))
	return r, nil
}

// IPStr returns the decoded IP.
func (r RegisterRequest) IPStr() string { return getString(r.IP[:]) }

// BackupIPStr returns the decoded backup IP.
func (r RegisterRequest) BackupIPStr() string { return getString(r.BackupIP[:]) }

// RegisterAck is the N2S_REGISTER_ACK payload.
type RegisterAck struct {
	NewSSID       int32
	BackupOfSSID  int32
	BackupSSIP    [MaxIP]byte
	BackupSSPort  int32
	MustRecover   uint8
	_             [3]byte
}

// RegisterAckSize is the encoded size of RegisterAck.
const RegisterAckSize = 4 + 4 + MaxIP + 4 + 1 + 3

// Encode serializes the ack.
func (a RegisterAck) Encode() []byte {
	buf := make([]byte, RegisterAckSize)
	off := 0
	binary.NativeEndian.PutUint32(buf[off:off+4], uint32(a.NewSSID))
	off += 4
	binary.NativeEndian.PutUint32(buf[off:off+4], uint32(a.BackupOfSSID))
	off += 4
	copy(buf[off:off+MaxIP], a.BackupSSIP[:])
	off += MaxIP
	binary.NativeEndian.PutUint32(buf[off:off+4], uint32(a.BackupSSPort))
	off += 4
	buf[off] = a.MustRecover
	return buf
}

// NewRegisterAck builds a RegisterAck, validating field widths.
func NewRegisterAck(newSSID, backupOfSSID int32, backupSSIP string, backupSSPort int32, mustRecover bool) (RegisterAck, error) {
	var a RegisterAck
	if len(backupSSIP) >= MaxIP {
		return a, fmt.Errorf("wire: backup ss ip %q exceeds %d bytes", backupSSIP, MaxIP-1)
	}
	a.NewSSID = newSSID
	a.BackupOfSSID = backupOfSSID
	putString(a.BackupSSIP[:], backupSSIP)
	a.BackupSSPort = backupSSPort
	if mustRecover {
		a.MustRecover = 1
	}
	return a, nil
}

// DecodeRegisterAck parses a RegisterAck from buf.
func DecodeRegisterAck(buf []byte) (RegisterAck, error) {
	var a RegisterAck
	if len(buf) < RegisterAckSize {
		return a, fmt.Errorf("wire: short RegisterAck buffer (%d bytes)", len(buf))
	}
	off := 0
	a.NewSSID = int32(binary.NativeEndian.Uint32(buf[off : off+4]))
	off += 4
	a.BackupOfSSID = int32(binary.NativeEndian.Uint32(buf[off : off+4]))
	off += 4
	copy(a.BackupSSIP[:], buf[off:off+MaxIP])
	off += MaxIP
	a.BackupSSPort = int32(binary.NativeEndian.Uint32(buf[off : off+4]))
	off += 4
	a.MustRecover = buf[off]
	return a, nil
}

// BackupSSIPStr returns the decoded backup SS IP.
func (a RegisterAck) BackupSSIPStr() string { return getString(a.BackupSSIP[:]) }

// IsMustRecover reports whether the SS node must passively wait for
// NS-driven recovery after registering.
func (a RegisterAck) IsMustRecover() bool { return a.MustRecover != 0 }
