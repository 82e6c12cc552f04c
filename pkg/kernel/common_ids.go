package kernel

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type GroupID string

func (g GroupID) String() string { return string(g) }

// SessionID is the opaque session uuid, also used as the session-id cookie value
type SessionID string

func (s SessionID) String() string { return string(s) }
func (s SessionID) IsEmpty() bool  { return string(s) == "" }

type ClientID string

func (c ClientID) String() string { return string(c) }
func (c ClientID) IsEmpty() bool  { return string(c) == "" }
