// Package graph implements a Transport that sends announcements via the
// Microsoft Graph API.
package graph

import "github.com/shineum/release-announcer/internal/mail"

// sendMailRequest is the top-level request body for the Graph API sendMail endpoint.
type sendMailRequest struct {
	Message         sendMailMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

// sendMailMessage represents the message portion of a sendMail request.
type sendMailMessage struct {
	Subject      string      `json:"subject"`
	Body         messageBody `json:"body"`
	ToRecipients []recipient `json:"toRecipients"`
}

type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

// tokenResponse represents the OAuth2 token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// graphErrorResponse represents an error response from the Graph API.
type graphErrorResponse struct {
	Error graphError `json:"error"`
}

type graphError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// buildSendMailRequest converts announcement options into a plain-text
// sendMail request body.
func buildSendMailRequest(opts *mail.Options) *sendMailRequest {
	toRecipients := make([]recipient, 0, len(opts.To))
	for _, addr := range opts.To {
		toRecipients = append(toRecipients, recipient{
			EmailAddress: emailAddress{Address: addr},
		})
	}

	return &sendMailRequest{
		Message: sendMailMessage{
			Subject: opts.Subject,
			Body: messageBody{
				ContentType: "text",
				Content:     opts.Message,
			},
			ToRecipients: toRecipients,
		},
		SaveToSentItems: true,
	}
}
