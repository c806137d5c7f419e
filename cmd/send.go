package main

import (
	"fmt"
	"strings"

	"mail-cli/internal/compose"

	"github.com/spf13/cobra"
)

var (
	sendTo          []string
	sendCc          []string
	sendBcc         []string
	sendSubject     string
	sendBody        string
	sendStyle       string
	sendAttachments []string
	sendDryRun      bool
	sendForce       bool
	sendYolo        bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Compose and send an email",
	Long: `Compose and send an email. Recipients are addresses or '#group'
references; groups expand with duplicates removed across To/Cc/Bcc.

A preview is always rendered first. Without --force or --yolo the send
requires interactive confirmation; piped input never confirms.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		adapter, err := newAdapter(ctx)
		if err != nil {
			return err
		}

		composer, err := newComposer(adapter)
		if err != nil {
			return err
		}

		result, err := composer.Compose(ctx, compose.Request{
			To:          sendTo,
			Cc:          sendCc,
			Bcc:         sendBcc,
			Subject:     sendSubject,
			Body:        sendBody,
			StyleName:   sendStyle,
			Attachments: sendAttachments,
			DryRun:      sendDryRun,
			Force:       sendForce,
			Yolo:        sendYolo,
		})
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(result)
		}

		renderPreview(result.Preview)

		switch {
		case result.Sent:
			fmt.Printf("\nSent. Message ID: %s\n", result.MessageID)
		case result.Cancelled:
			fmt.Println("\nCancelled.")
		default:
			fmt.Println("\nDry run: nothing sent.")
		}

		return nil
	},
}

var (
	replyBody string
	replyYolo bool
)

var replyCmd = &cobra.Command{
	Use:   "reply <message-id>",
	Short: "Reply to a message, preserving threading headers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		adapter, err := newAdapter(ctx)
		if err != nil {
			return err
		}

		composer, err := newComposer(adapter)
		if err != nil {
			return err
		}

		if !replyYolo {
			original, err := adapter.GetSummary(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Replying to %s (%s)\n\n%s\n\n", original.From.Spec(), original.Subject, replyBody)

			ok, err := compose.NewConfirmer().Confirm("Send this reply?")
			if err != nil {
				return err
			}

			if !ok {
				fmt.Println("Cancelled.")

				return nil
			}
		}

		messageID, err := composer.SendReply(ctx, args[0], replyBody)
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(map[string]string{"message_id": messageID})
		}

		fmt.Printf("Sent. Message ID: %s\n", messageID)

		return nil
	},
}

func renderPreview(p compose.Preview) {
	if p.From != "" {
		fmt.Printf("From:    %s\n", p.From)
	}

	fmt.Printf("To:      %s\n", strings.Join(p.To, ", "))

	if len(p.Cc) > 0 {
		fmt.Printf("Cc:      %s\n", strings.Join(p.Cc, ", "))
	}

	if len(p.Bcc) > 0 {
		fmt.Printf("Bcc:     %s\n", strings.Join(p.Bcc, ", "))
	}

	fmt.Printf("Subject: %s\n", p.Subject)

	if len(p.Attachments) > 0 {
		fmt.Printf("Attach:  %s\n", strings.Join(p.Attachments, ", "))
	}

	fmt.Printf("\n%s\n", p.Body)

	if p.Style != nil {
		fmt.Printf("\nStyle: %s\n", p.Style.Name)

		if len(p.Style.Greetings) > 0 {
			fmt.Printf("  greetings: %s\n", strings.Join(p.Style.Greetings, " | "))
		}

		if len(p.Style.Closings) > 0 {
			fmt.Printf("  closings:  %s\n", strings.Join(p.Style.Closings, " | "))
		}
	}
}

func init() {
	sendCmd.Flags().StringArrayVar(&sendTo, "to", nil, "Recipient address or #group (repeatable)")
	sendCmd.Flags().StringArrayVar(&sendCc, "cc", nil, "Cc address or #group (repeatable)")
	sendCmd.Flags().StringArrayVar(&sendBcc, "bcc", nil, "Bcc address or #group (repeatable)")
	sendCmd.Flags().StringVar(&sendSubject, "subject", "", "Subject line")
	sendCmd.Flags().StringVar(&sendBody, "body", "", "Message body")
	sendCmd.Flags().StringVar(&sendStyle, "style", "", "Writing style to surface on the preview")
	sendCmd.Flags().StringArrayVar(&sendAttachments, "attachment", nil, "File to attach (repeatable)")
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "Render the preview and stop")
	sendCmd.Flags().BoolVar(&sendForce, "force", false, "Skip the confirmation prompt")
	sendCmd.Flags().BoolVar(&sendYolo, "yolo", false, "Send immediately without prompting")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("subject")
	sendCmd.MarkFlagRequired("body")
	sendCmd.MarkFlagsMutuallyExclusive("force", "yolo")

	replyCmd.Flags().StringVarP(&replyBody, "body", "b", "", "Reply body")
	replyCmd.Flags().BoolVar(&replyYolo, "yolo", false, "Send immediately without prompting")
	replyCmd.MarkFlagRequired("body")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(replyCmd)
}
