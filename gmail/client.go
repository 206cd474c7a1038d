package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const user = "me"

// Client wraps the Gmail API for message search and thread retrieval.
type Client struct {
	srv *gmail.Service
}

// NewClient builds a Gmail client from an OAuth client secret file and a
// cached token file. If no valid token is cached, the user is prompted to
// complete the authorization flow on the console.
func NewClient(ctx context.Context, credentialsFile, tokenFile string) (*Client, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	httpClient, err := getOAuthClient(ctx, oauthConfig, tokenFile)
	if err != nil {
		return nil, err
	}
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &Client{srv: srv}, nil
}

func getOAuthClient(ctx context.Context, config *oauth2.Config, tokenFile string) (*http.Client, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		tok, err = getTokenFromWeb(ctx, config)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			log.Printf("Gmail: unable to cache oauth token: %v", err)
		}
	}
	return config.Client(ctx, tok), nil
}

func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the "+
		"authorization code: \n%v\n", authURL)
	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// Search lists messages matching the given Gmail query and fetches the full
// record for each. Messages that fail to fetch individually are skipped with
// a log line; only the list call itself is a hard error.
func (c *Client) Search(ctx context.Context, query string, maxResults int64) ([]Message, error) {
	list, err := c.srv.Users.Messages.List(user).
		MaxResults(maxResults).
		Q(query).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list messages for query %q: %w", query, err)
	}
	messages := make([]Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		fullMsg, err := c.srv.Users.Messages.Get(user, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			log.Printf("Gmail: unable to retrieve full message %s: %v", ref.Id, err)
			continue
		}
		messages = append(messages, parseMessage(fullMsg))
	}
	return messages, nil
}

// GetThread fetches every message in a conversation, in the order the
// provider returns them.
func (c *Client) GetThread(ctx context.Context, threadID string) ([]Message, error) {
	thread, err := c.srv.Users.Threads.Get(user, threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve thread %s: %w", threadID, err)
	}
	messages := make([]Message, 0, len(thread.Messages))
	for _, msg := range thread.Messages {
		messages = append(messages, parseMessage(msg))
	}
	return messages, nil
}

func parseMessage(msg *gmail.Message) Message {
	email := Message{
		ID: msg.Id, ThreadID: msg.ThreadId, Snippet: msg.Snippet, InternalDate: msg.InternalDate,
	}
	if msg.Payload == nil {
		return email
	}
	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			email.Subject = header.Value
		case "From":
			email.From = header.Value
		case "To":
			email.To = header.Value
		case "Cc":
			email.Cc = header.Value
		case "Date":
			email.Date = parseDateHeader(header.Value)
		}
	}
	email.Body = getPlainTextBody(msg.Payload)
	return email
}

// parseDateHeader tries the common RFC formats mail clients actually emit.
func parseDateHeader(value string) time.Time {
	parsedDate, err := time.Parse(time.RFC1123Z, value)
	if err == nil {
		return parsedDate
	}
	parsedDate, err = time.Parse("Mon, 2 Jan 2006 15:04:05 -0700 (MST)", value)
	if err == nil {
		return parsedDate
	}
	parsedDate, err = time.Parse("Mon, 2 Jan 2006 15:04:05 -0700", value)
	if err == nil {
		return parsedDate
	}
	parsedDate, err = time.Parse("2 Jan 2006 15:04:05 -0700", value)
	if err == nil {
		return parsedDate
	}
	// Strip a trailing "(TZ)" comment and retry the simpler formats.
	noTZParen := value
	if openParen := strings.LastIndex(noTZParen, " ("); openParen != -1 {
		if closeParen := strings.LastIndex(noTZParen, ")"); closeParen > openParen {
			noTZParen = noTZParen[:openParen] + noTZParen[closeParen+1:]
		}
	}
	noTZParen = strings.TrimSpace(noTZParen)
	for _, layout := range []string{"Mon, 2 Jan 2006 15:04:05 -0700", time.RFC1123, time.RFC822} {
		parsedDate, err = time.Parse(layout, noTZParen)
		if err == nil {
			return parsedDate
		}
	}
	log.Printf("Gmail: could not parse date string %q: %v", value, err)
	return time.Time{}
}

func getPlainTextBody(payload *gmail.MessagePart) string {
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data)
		}
		log.Printf("Gmail: error decoding base64 body for text/plain: %v", err)
	}
	for _, part := range payload.Parts {
		if strings.HasPrefix(strings.ToLower(part.MimeType), "text/") ||
			strings.HasPrefix(strings.ToLower(part.MimeType), "multipart/") {
			if body := getPlainTextBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}
