package tokenauth

// AccessMode is a semantic operation a token permits on a block.
type AccessMode string

const (
	AccessRead    AccessMode = "READ"
	AccessWrite   AccessMode = "WRITE"
	AccessCopy    AccessMode = "COPY"
	AccessReplace AccessMode = "REPLACE"
)

// BlockReference names a block within a pool/namespace.
type BlockReference struct {
	PoolID  string
	BlockID int64
}

// TokenIdentifier is the plaintext claim bound by a token's MAC.
type TokenIdentifier struct {
	ExpiryMillis int64
	KeyID        int32
	UserID       string
	BlockPoolID  string
	BlockID      int64
	AccessModes  []AccessMode
}

// hasMode reports whether m is present in the identifier's access modes.
func (id *TokenIdentifier) hasMode(m AccessMode) bool {
	for _, have := range id.AccessModes {
		if have == m {
			return true
		}
	}
	return false
}

// Token is the (identifier, password, kind, service) tuple clients
// present to a slave. kind and service are opaque routing hints for
// the transport layer; they do not participate in verification.
type Token struct {
	Identifier []byte
	Password   []byte
	Kind       string
	Service    string
}

// HDFSBlockTokenKind is the reference kind string for wire
// compatibility with deployed clients.
const HDFSBlockTokenKind = "HDFS_BLOCK_TOKEN"

var emptyToken = Token{
	Identifier: []byte{},
	Password:   []byte{},
	Kind:       "",
	Service:    "",
}

// Dummy returns the singleton empty token used by unauthenticated
// paths that must still carry a typed token placeholder. It must
// never validate.
func Dummy() Token {
	return emptyToken
}

// IsDummy reports whether t is the empty placeholder token.
func IsDummy(t Token) bool {
	return len(t.Identifier) == 0 && len(t.Password) == 0
}
