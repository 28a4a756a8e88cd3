package superclip

// CreateClipRequest is the input for creating a clip. ExpiresAt is an
// epoch timestamp in milliseconds, matching what clients send on the
// wire. Exactly one of Text or File must be set, picked by Kind.
type CreateClipRequest struct {
	Kind         ClipKind
	ExpiresAt    int64
	MaxDownloads *int
	AccessCode   string
	AccessToken  string
	OwnerID      string
	Text         string
	File         *FileUpload
	CaptchaToken string
}

// FileUpload describes an uploaded file as received from a client: a
// display name and a base64 data URL carrying the bytes. The stored
// mime type comes from the data URL header, not from the client's
// declared type.
type FileUpload struct {
	Name    string
	DataURL string
}

// RegisterTokenRequest is the input for registering a persistent token.
// OwnerID is optional; when empty the repository assigns a fresh owner.
type RegisterTokenRequest struct {
	Token   string
	OwnerID string
}
