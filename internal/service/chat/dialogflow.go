package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dialogflow "cloud.google.com/go/dialogflow/apiv2"
	"cloud.google.com/go/dialogflow/apiv2/dialogflowpb"
)

// DialogflowConfig configures the Dialogflow ES agent used for replies.
type DialogflowConfig struct {
	ProjectID    string
	LanguageCode string
}

type detectIntentFunc func(ctx context.Context, req *dialogflowpb.DetectIntentRequest) (*dialogflowpb.DetectIntentResponse, error)

// DialogflowResponder answers with the fulfillment text of a Dialogflow
// agent. Each conversation maps to one Dialogflow session, so the agent keeps
// its own context per voice session.
type DialogflowResponder struct {
	projectID    string
	languageCode string
	detect       detectIntentFunc
	close        func() error
}

// NewDialogflowResponder connects to Dialogflow using application default
// credentials.
func NewDialogflowResponder(ctx context.Context, cfg DialogflowConfig) (*DialogflowResponder, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("dialogflow: project ID required")
	}
	client, err := dialogflow.NewSessionsClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialogflow: create sessions client: %w", err)
	}
	r := newDialogflowResponder(cfg, func(ctx context.Context, req *dialogflowpb.DetectIntentRequest) (*dialogflowpb.DetectIntentResponse, error) {
		return client.DetectIntent(ctx, req)
	})
	r.close = client.Close
	return r, nil
}

func newDialogflowResponder(cfg DialogflowConfig, detect detectIntentFunc) *DialogflowResponder {
	lang := cfg.LanguageCode
	if lang == "" {
		lang = "en-US"
	}
	return &DialogflowResponder{
		projectID:    cfg.ProjectID,
		languageCode: lang,
		detect:       detect,
		close:        func() error { return nil },
	}
}

func (r *DialogflowResponder) Name() string { return "dialogflow" }

func (r *DialogflowResponder) Reply(ctx context.Context, conversation, message string) (string, error) {
	resp, err := r.detect(ctx, &dialogflowpb.DetectIntentRequest{
		Session: r.sessionPath(conversation),
		QueryInput: &dialogflowpb.QueryInput{
			Input: &dialogflowpb.QueryInput_Text{
				Text: &dialogflowpb.TextInput{
					Text:         message,
					LanguageCode: r.languageCode,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("dialogflow detect intent: %w", err)
	}

	result := resp.GetQueryResult()
	if text := strings.TrimSpace(result.GetFulfillmentText()); text != "" {
		return text, nil
	}
	for _, msg := range result.GetFulfillmentMessages() {
		for _, text := range msg.GetText().GetText() {
			if text = strings.TrimSpace(text); text != "" {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("dialogflow: no fulfillment for intent %q", result.GetIntent().GetDisplayName())
}

// Close releases the Dialogflow client.
func (r *DialogflowResponder) Close() error {
	return r.close()
}

func (r *DialogflowResponder) sessionPath(conversation string) string {
	return fmt.Sprintf("projects/%s/agent/sessions/%s", r.projectID, conversation)
}
