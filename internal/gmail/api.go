package gmail

import (
	"context"
	"fmt"
	"net/http"

	"mail-cli/pkg/interfaces"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// restAPI implements interfaces.GmailAPI on top of the Gmail REST client.
// All methods are single calls with no retry; the adapter owns that policy.
type restAPI struct {
	service *gmail.Service
}

// NewAPI wraps an authenticated HTTP client in the GmailAPI capability.
func NewAPI(ctx context.Context, client *http.Client) (interfaces.GmailAPI, error) {
	if client == nil {
		return nil, fmt.Errorf("HTTP client is required")
	}

	service, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	return &restAPI{service: service}, nil
}

func (a *restAPI) ListMessages(ctx context.Context, query, pageToken string, max int64) ([]string, string, error) {
	req := a.service.Users.Messages.List("me").Q(query).MaxResults(max).Context(ctx)
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}

	resp, err := req.Do()
	if err != nil {
		return nil, "", err
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}

	return ids, resp.NextPageToken, nil
}

func (a *restAPI) GetMessage(ctx context.Context, id, format string, metadataHeaders []string) (*gmail.Message, error) {
	req := a.service.Users.Messages.Get("me", id).Format(format).Context(ctx)
	if len(metadataHeaders) > 0 {
		req = req.MetadataHeaders(metadataHeaders...)
	}

	return req.Do()
}

func (a *restAPI) ModifyMessage(ctx context.Context, id string, addLabels, removeLabels []string) (*gmail.Message, error) {
	return a.service.Users.Messages.Modify("me", id, &gmail.ModifyMessageRequest{
		AddLabelIds:    addLabels,
		RemoveLabelIds: removeLabels,
	}).Context(ctx).Do()
}

func (a *restAPI) SendMessage(ctx context.Context, raw string) (string, string, error) {
	msg, err := a.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", "", err
	}

	return msg.Id, msg.ThreadId, nil
}

func (a *restAPI) ListLabels(ctx context.Context) ([]*gmail.Label, error) {
	resp, err := a.service.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	return resp.Labels, nil
}

func (a *restAPI) GetLabel(ctx context.Context, id string) (*gmail.Label, error) {
	return a.service.Users.Labels.Get("me", id).Context(ctx).Do()
}

func (a *restAPI) GetThread(ctx context.Context, id string) (*gmail.Thread, error) {
	return a.service.Users.Threads.Get("me", id).Format("full").Context(ctx).Do()
}

func (a *restAPI) GetProfile(ctx context.Context) (*gmail.Profile, error) {
	return a.service.Users.GetProfile("me").Context(ctx).Do()
}
