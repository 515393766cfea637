// Package email provides the sendEmail tool.
package email

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/m-mizutani/fennec/pkg/adapter"
	"github.com/m-mizutani/fennec/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

type sendInput struct {
	To            string `json:"to"`
	Subject       string `json:"subject"`
	Message       string `json:"message"`
	RecipientName string `json:"recipientName"`
}

// Tool sends email on behalf of the agent.
type Tool struct {
	mail adapter.Mail
}

// New creates the email tool.
func New() *Tool {
	return &Tool{}
}

// Flags returns CLI flags for this tool
func (t *Tool) Flags() []cli.Flag {
	return nil // SMTP settings are global flags
}

// Init enables the tool only when a mail sender is configured.
func (t *Tool) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if client.Mail == nil {
		return false, nil
	}
	t.mail = client.Mail
	return true, nil
}

// Prompt returns additional information to be added to the system prompt
func (t *Tool) Prompt(ctx context.Context) string {
	return "You can send email with the sendEmail tool. Only send email when the user explicitly asks for it, and compose the subject and message yourself from the conversation."
}

// Spec returns the tool specification for Gemini function calling
func (t *Tool) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "sendEmail",
				Description: "Send an email to a recipient.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"to": {
							Type:        genai.TypeString,
							Description: "Recipient email address",
						},
						"subject": {
							Type:        genai.TypeString,
							Description: "Email subject",
						},
						"message": {
							Type:        genai.TypeString,
							Description: "Email body text",
						},
						"recipientName": {
							Type:        genai.TypeString,
							Description: "Optional recipient name used in the greeting",
						},
					},
					Required: []string{"to", "subject", "message"},
				},
			},
		},
	}
}

// Execute runs the tool with the given function call
func (t *Tool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	params, err := json.Marshal(fc.Args)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal function arguments")
	}

	var input sendInput
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, goerr.Wrap(err, "failed to parse email arguments")
	}
	if input.To == "" || input.Subject == "" || input.Message == "" {
		return nil, goerr.New("to, subject and message are required",
			goerr.V("to", input.To), goerr.V("subject", input.Subject))
	}

	body := htmlBody(input)
	if err := t.mail.Send(input.To, input.Subject, body); err != nil {
		return nil, goerr.Wrap(err, "failed to send email", goerr.V("to", input.To))
	}

	return &genai.FunctionResponse{
		Name: fc.Name,
		Response: map[string]any{
			"success": true,
			"message": fmt.Sprintf("email sent to %s", input.To),
			"sentEmail": map[string]any{
				"to":      input.To,
				"subject": input.Subject,
				"body":    input.Message,
			},
			"directive": "Email sent: confirm to the user in the user's language. Do not call tools again.",
		},
	}, nil
}

func htmlBody(input sendInput) string {
	var sb strings.Builder
	if input.RecipientName != "" {
		sb.WriteString("<p>Dear " + html.EscapeString(input.RecipientName) + ",</p>\n")
	}
	for _, para := range strings.Split(input.Message, "\n\n") {
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		sb.WriteString("</p>\n")
	}
	return sb.String()
}
