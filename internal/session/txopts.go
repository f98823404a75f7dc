package session

// Transaction option constants. The session core does not manage
// transactions itself; these are the fixed vocabulary a transaction layer
// built on top of Exec uses to render BEGIN clauses.

// IsoLevel is a transaction isolation level.
type IsoLevel string

const (
	// ReadCommitted is the server default.
	ReadCommitted  IsoLevel = "read committed"
	RepeatableRead IsoLevel = "repeatable read"
	Serializable   IsoLevel = "serializable"
)

// AccessMode controls whether a transaction may write.
type AccessMode string

const (
	ReadWrite AccessMode = "read write"
	ReadOnly  AccessMode = "read only"
)

// DeferrableMode controls constraint deferral for serializable read-only
// transactions.
type DeferrableMode string

const (
	Deferrable    DeferrableMode = "deferrable"
	NotDeferrable DeferrableMode = "not deferrable"
)

// Transaction status bytes as reported by TxStatus.
const (
	TxIdle   byte = 'I'
	TxActive byte = 'T'
	TxFailed byte = 'E'
)
