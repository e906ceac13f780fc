package acl

// Effective is the combined privilege a user holds on one calendar.
type Effective struct {
	Read  bool
	Write bool
}

func (e Effective) CanRead() bool {
	return e.Read || e.Write
}

func (e Effective) CanWrite() bool {
	return e.Write
}
