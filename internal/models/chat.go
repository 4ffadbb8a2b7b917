package models

// Attachment describes a file attached to a chat message. Only metadata is
// sent with the message; the content goes through the upload endpoint.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message    string      `json:"message"`
	Attachment *Attachment `json:"attachment,omitempty"`
	// File is the key older widget builds use for the attachment.
	File      *Attachment `json:"file,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
}

// AttachmentInfo returns the attachment under either key.
func (r ChatRequest) AttachmentInfo() *Attachment {
	if r.Attachment != nil {
		return r.Attachment
	}
	return r.File
}

// ChatResponse is the reply to a chat message: exactly one field is set.
type ChatResponse struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ChatExchange is published for every handled chat message.
type ChatExchange struct {
	EventType  string      `json:"eventType"`
	SessionID  string      `json:"sessionId,omitempty"`
	Source     string      `json:"source"`
	Message    string      `json:"message"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Response   string      `json:"response,omitempty"`
	Error      string      `json:"error,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}

// UploadResult is the reply to POST /upload.
type UploadResult struct {
	Success  bool   `json:"success,omitempty"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}
