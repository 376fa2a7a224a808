package cli

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewFeedbackCmd создаёт группу команд для работы с feedback.
func NewFeedbackCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Manage stakeholder feedback",
	}

	cmd.AddCommand(
		newFeedbackSubmitCmd(clientFn, outputFn),
		newFeedbackListCmd(clientFn, outputFn),
		newFeedbackAggregateCmd(clientFn, outputFn),
	)

	return cmd
}

func newFeedbackSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var messageID string
	var stakeholderID string
	var stakeholderName string
	var stakeholderRole string
	var comment string

	cmd := &cobra.Command{
		Use:   "submit TOKEN DECISION",
		Short: "Submit a stakeholder decision (interview, decline or comment)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if stakeholderID == "" {
				return fmt.Errorf("--stakeholder-id is required")
			}
			if messageID == "" {
				messageID = uuid.NewString()
			}

			fb, err := client.SubmitFeedback(SubmitFeedbackRequest{
				Token:           args[0],
				MessageID:       messageID,
				StakeholderID:   stakeholderID,
				StakeholderName: stakeholderName,
				StakeholderRole: stakeholderRole,
				Decision:        args[1],
				Comment:         comment,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Feedback recorded: %s (candidate %s)", fb.ID, fb.CandidateID))
			return nil
		},
	}

	cmd.Flags().StringVar(&messageID, "message-id", "", "Provider message ID (generated if omitted)")
	cmd.Flags().StringVar(&stakeholderID, "stakeholder-id", "", "Stakeholder ID at the messaging provider")
	cmd.Flags().StringVar(&stakeholderName, "stakeholder-name", "", "Stakeholder display name")
	cmd.Flags().StringVar(&stakeholderRole, "stakeholder-role", "", "Stakeholder role (hiring_manager, recruiter, interviewer)")
	cmd.Flags().StringVar(&comment, "comment", "", "Free-form comment")

	return cmd
}

func newFeedbackListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list CANDIDATE_ID",
		Short: "List feedback for a candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			records, err := client.GetFeedback(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STAKEHOLDER", "ROLE", "DECISION", "RECEIVED", "LATE", "CONFLICTING"}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					r.StakeholderID,
					r.StakeholderRole,
					r.Decision,
					r.ReceivedAt,
					strconv.FormatBool(r.PostCompletion),
					strconv.FormatBool(r.Conflicting),
				}
			}

			out.Print(headers, rows, records)
			return nil
		},
	}
}

func newFeedbackAggregateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "aggregate CANDIDATE_ID",
		Short: "Show the aggregated decision for a candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			agg, err := client.GetAggregate(args[0], policy)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"DECISION", "POLICY", "DECIDED_BY", "TOTAL", "CONFLICTING"},
				[][]string{{
					agg.Decision,
					agg.Policy,
					agg.Decisive.StakeholderID,
					strconv.Itoa(agg.Total),
					strconv.FormatBool(agg.Conflicting),
				}},
				agg,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "", "Aggregation policy (most_recent, role_precedence, majority)")

	return cmd
}
