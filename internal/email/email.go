// Package email reads the JSON description of an incoming email and finds
// the links to its PDF attachments.
//
// The layout follows the Gmail API message shape: a top-level sender and
// subject and a payload.parts array whose entries carry a filename and,
// for attachments hosted elsewhere, a link in the part body.
package email

import (
	"errors"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when the email document is not valid JSON.
var ErrInvalidJSON = errors.New("email document is not valid JSON")

// Message is the part of an email the pipeline needs.
type Message struct {
	Sender  string   `json:"sender"`
	Subject string   `json:"subject"`
	PDFURLs []string `json:"pdf_urls"`
}

var driveLink = regexp.MustCompile(`https://drive\.google\.com/[^\s'"<>\\]+`)

// Parse extracts sender, subject and PDF attachment links from an email
// JSON document. A message without PDF attachments is not an error; its
// PDFURLs is empty.
func Parse(data []byte) (*Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, goerr.Wrap(ErrInvalidJSON, "failed to parse email", goerr.V("size", len(data)))
	}

	doc := gjson.ParseBytes(data)
	msg := &Message{
		Sender:  senderOf(doc),
		Subject: doc.Get("subject").String(),
		PDFURLs: []string{},
	}

	seen := make(map[string]bool)
	add := func(u string) {
		u = strings.TrimRight(u, ".,;)")
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		msg.PDFURLs = append(msg.PDFURLs, u)
	}

	doc.Get("payload.parts").ForEach(func(_, part gjson.Result) bool {
		if !isPDFName(part.Get("filename").String()) {
			return true
		}
		for _, link := range driveLink.FindAllString(part.Raw, -1) {
			add(link)
		}
		for _, path := range []string{"url", "body.url", "body.attachmentUrl"} {
			if u := part.Get(path).String(); isHTTP(u) {
				add(u)
			}
		}
		return true
	})

	return msg, nil
}

// senderOf accepts both {"sender": {"email": ...}} and {"sender": "..."}.
func senderOf(doc gjson.Result) string {
	sender := doc.Get("sender")
	if sender.IsObject() {
		return sender.Get("email").String()
	}
	return sender.String()
}

func isPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".pdf")
}

func isHTTP(u string) bool {
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")
}
