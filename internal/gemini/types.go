package gemini

type ImageInput struct {
	DataBase64 string
	MimeType   string
}

// Request is one generation call. Images are sent in order: the primary
// structural image first, the style reference second.
type Request struct {
	Instruction string
	Images      []ImageInput
	AspectRatio string
	// APIKey overrides the client credential for this call when set.
	APIKey string
}

type Response struct {
	Text string
	// Images are data URLs ("data:image/png;base64,...").
	Images []string
}
