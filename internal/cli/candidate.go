package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewCandidateCmd создаёт группу команд для управления кандидатами.
func NewCandidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidate",
		Short: "Manage candidates",
	}

	cmd.AddCommand(
		newCandidateSubmitCmd(clientFn, outputFn),
		newCandidateShowCmd(clientFn, outputFn),
		newCandidateReprocessCmd(clientFn, outputFn),
		newCandidateAbortCmd(clientFn, outputFn),
		newCandidateAuditCmd(clientFn, outputFn),
		newCandidateEvaluationCmd(clientFn, outputFn),
	)

	return cmd
}

func newCandidateSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var email string
	var jobID string
	var resumePath string
	var resumeRef string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a resume for screening",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if name == "" || email == "" || jobID == "" {
				return fmt.Errorf("--name, --email and --job-id are required")
			}
			if resumePath == "" && resumeRef == "" {
				return fmt.Errorf("either --resume or --resume-ref is required")
			}

			ref := resumeRef
			if resumePath != "" {
				upload, err := client.UploadResume(resumePath)
				if err != nil {
					return err
				}
				ref = upload.ResumeRef
				out.Success(fmt.Sprintf("Resume uploaded: %s (%d bytes)", upload.ResumeRef, upload.Bytes))
			}

			cand, err := client.SubmitCandidate(SubmitCandidateRequest{
				Name:      name,
				Email:     email,
				JobID:     jobID,
				ResumeRef: ref,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Candidate submitted: %s", cand.ID))
			out.Print(
				[]string{"ID", "NAME", "STATE", "WORK_STATUS", "SUBMITTED"},
				[][]string{{cand.ID, cand.Name, cand.State, cand.WorkStatus, cand.SubmittedAt}},
				cand,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Candidate name")
	cmd.Flags().StringVar(&email, "email", "", "Candidate email")
	cmd.Flags().StringVar(&jobID, "job-id", "", "Job description ID")
	cmd.Flags().StringVar(&resumePath, "resume", "", "Path to resume file (uploaded before submit)")
	cmd.Flags().StringVar(&resumeRef, "resume-ref", "", "Reference to an already uploaded resume")

	return cmd
}

func newCandidateShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show candidate state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cand, err := client.GetCandidate(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "STATE", "STAGE", "WORK_STATUS", "ERROR", "UPDATED"},
				[][]string{{cand.ID, cand.Name, cand.State, cand.Stage, cand.WorkStatus, cand.Error, cand.UpdatedAt}},
				cand,
			)
			return nil
		},
	}
}

func newCandidateReprocessCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reprocess ID",
		Short: "Reprocess a failed candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cand, err := client.ReprocessCandidate(args[0], force)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Candidate queued for reprocessing: %s", cand.ID))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Ignore idempotency gates and re-deliver the notification")

	return cmd
}

func newCandidateAbortCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "abort ID",
		Short: "Abort candidate processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cand, err := client.AbortCandidate(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Abort requested: %s (state %s)", cand.ID, cand.State))
			return nil
		},
	}
}

func newCandidateAuditCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "audit ID",
		Short: "Show candidate audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			entries, err := client.GetAudit(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STAGE", "ATTEMPT", "OUTCOME", "DURATION_MS", "ERROR", "DETAIL"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{
					e.Stage,
					strconv.Itoa(e.Attempt),
					e.Outcome,
					strconv.FormatInt(e.DurationMS, 10),
					e.Error,
					e.Detail,
				}
			}

			out.Print(headers, rows, entries)
			return nil
		},
	}
}

func newCandidateEvaluationCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluation ID",
		Short: "Show candidate evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			ev, err := client.GetEvaluation(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"CANDIDATE_ID", "SCORE", "RECOMMENDATION", "NOTIFIED", "REPORT", "MODEL"},
				[][]string{{
					ev.CandidateID,
					strconv.Itoa(ev.OverallScore),
					ev.Recommendation,
					strconv.FormatBool(ev.NotificationSent),
					ev.ReportRef,
					ev.Model,
				}},
				ev,
			)
			return nil
		},
	}
}
