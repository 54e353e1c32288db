package coordinator

// ChatRef identifies the conversation a respond call targets: either a
// persisted chat by id, or a volatile chat that lives only in client memory.
type ChatRef struct {
	id         int64
	persistent bool
}

func Persistent(id int64) ChatRef {
	return ChatRef{id: id, persistent: true}
}

func Volatile() ChatRef {
	return ChatRef{}
}

func (r ChatRef) IsPersistent() bool {
	return r.persistent
}

func (r ChatRef) ID() int64 {
	return r.id
}
