package types

import "fmt"

// -----------------------------------------------------------------------------
// HelloMessage

// NewEmpty implements types.Message.
func (m HelloMessage) NewEmpty() Message {
	return &HelloMessage{}
}

// Name implements types.Message.
func (HelloMessage) Name() string {
	return "hello"
}

// String implements types.Message.
func (m HelloMessage) String() string {
	return fmt.Sprintf("{hello from party %d}", m.Party)
}

// -----------------------------------------------------------------------------
// SessionMessage

// NewEmpty implements types.Message.
func (m SessionMessage) NewEmpty() Message {
	return &SessionMessage{}
}

// Name implements types.Message.
func (SessionMessage) Name() string {
	return "session"
}

// String implements types.Message.
func (m SessionMessage) String() string {
	return fmt.Sprintf("{session %s}", m.SessionID)
}

// -----------------------------------------------------------------------------
// HeartbeatMessage

// NewEmpty implements types.Message.
func (m HeartbeatMessage) NewEmpty() Message {
	return &HeartbeatMessage{}
}

// Name implements types.Message.
func (HeartbeatMessage) Name() string {
	return "heartbeat"
}

// String implements types.Message.
func (m HeartbeatMessage) String() string {
	return fmt.Sprintf("{heartbeat %d}", m.Timestamp)
}

// -----------------------------------------------------------------------------
// HeartbeatReplyMessage

// NewEmpty implements types.Message.
func (m HeartbeatReplyMessage) NewEmpty() Message {
	return &HeartbeatReplyMessage{}
}

// Name implements types.Message.
func (HeartbeatReplyMessage) Name() string {
	return "heartbeatreply"
}

// String implements types.Message.
func (m HeartbeatReplyMessage) String() string {
	return fmt.Sprintf("{heartbeatreply echo %d}", m.Echo)
}

// -----------------------------------------------------------------------------
// SyncMessage

// NewEmpty implements types.Message.
func (m SyncMessage) NewEmpty() Message {
	return &SyncMessage{}
}

// Name implements types.Message.
func (SyncMessage) Name() string {
	return "sync"
}

// String implements types.Message.
func (m SyncMessage) String() string {
	return fmt.Sprintf("{sync phase %s}", m.Phase)
}

// -----------------------------------------------------------------------------
// ErrorMessage

// NewEmpty implements types.Message.
func (m ErrorMessage) NewEmpty() Message {
	return &ErrorMessage{}
}

// Name implements types.Message.
func (ErrorMessage) Name() string {
	return "error"
}

// String implements types.Message.
func (m ErrorMessage) String() string {
	return fmt.Sprintf("{error %s: %s}", m.Code, m.Reason)
}

// -----------------------------------------------------------------------------
// MacKeyMessage

// NewEmpty implements types.Message.
func (m MacKeyMessage) NewEmpty() Message {
	return &MacKeyMessage{}
}

// Name implements types.Message.
func (MacKeyMessage) Name() string {
	return "mackey"
}

// String implements types.Message.
func (m MacKeyMessage) String() string {
	return "{mackey share}"
}

// -----------------------------------------------------------------------------
// ShareMessage

// NewEmpty implements types.Message.
func (m ShareMessage) NewEmpty() Message {
	return &ShareMessage{}
}

// Name implements types.Message.
func (ShareMessage) Name() string {
	return "share"
}

// String implements types.Message.
func (m ShareMessage) String() string {
	return fmt.Sprintf("{share req %s owner %d}", m.ReqID, m.Owner)
}

// -----------------------------------------------------------------------------
// ReconstructMessage

// NewEmpty implements types.Message.
func (m ReconstructMessage) NewEmpty() Message {
	return &ReconstructMessage{}
}

// Name implements types.Message.
func (ReconstructMessage) Name() string {
	return "reconstruct"
}

// String implements types.Message.
func (m ReconstructMessage) String() string {
	return fmt.Sprintf("{reconstruct req %s stage %s}", m.ReqID, m.Stage)
}

// -----------------------------------------------------------------------------
// MultiplyMessage

// NewEmpty implements types.Message.
func (m MultiplyMessage) NewEmpty() Message {
	return &MultiplyMessage{}
}

// Name implements types.Message.
func (MultiplyMessage) Name() string {
	return "multiply"
}

// String implements types.Message.
func (m MultiplyMessage) String() string {
	return fmt.Sprintf("{multiply req %s}", m.ReqID)
}

// -----------------------------------------------------------------------------
// CompareMessage

// NewEmpty implements types.Message.
func (m CompareMessage) NewEmpty() Message {
	return &CompareMessage{}
}

// Name implements types.Message.
func (CompareMessage) Name() string {
	return "compare"
}

// String implements types.Message.
func (m CompareMessage) String() string {
	return fmt.Sprintf("{compare req %s}", m.ReqID)
}

// -----------------------------------------------------------------------------
// PrepRequestMessage

// NewEmpty implements types.Message.
func (m PrepRequestMessage) NewEmpty() Message {
	return &PrepRequestMessage{}
}

// Name implements types.Message.
func (PrepRequestMessage) Name() string {
	return "prepreq"
}

// String implements types.Message.
func (m PrepRequestMessage) String() string {
	return fmt.Sprintf("{prepreq %s x%d}", m.Kind, m.Count)
}

// -----------------------------------------------------------------------------
// TripleBatchMessage

// NewEmpty implements types.Message.
func (m TripleBatchMessage) NewEmpty() Message {
	return &TripleBatchMessage{}
}

// Name implements types.Message.
func (TripleBatchMessage) Name() string {
	return "triplebatch"
}

// String implements types.Message.
func (m TripleBatchMessage) String() string {
	return fmt.Sprintf("{triplebatch x%d}", len(m.Batch))
}

// -----------------------------------------------------------------------------
// BitBatchMessage

// NewEmpty implements types.Message.
func (m BitBatchMessage) NewEmpty() Message {
	return &BitBatchMessage{}
}

// Name implements types.Message.
func (BitBatchMessage) Name() string {
	return "bitbatch"
}

// String implements types.Message.
func (m BitBatchMessage) String() string {
	return fmt.Sprintf("{bitbatch x%d}", len(m.Batch))
}

// -----------------------------------------------------------------------------
// MaskBatchMessage

// NewEmpty implements types.Message.
func (m MaskBatchMessage) NewEmpty() Message {
	return &MaskBatchMessage{}
}

// Name implements types.Message.
func (MaskBatchMessage) Name() string {
	return "maskbatch"
}

// String implements types.Message.
func (m MaskBatchMessage) String() string {
	return fmt.Sprintf("{maskbatch owner %d x%d}", m.Owner, len(m.Batch))
}
