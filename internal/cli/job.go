package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для управления вакансиями.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage job descriptions",
	}

	cmd.AddCommand(
		newJobCreateCmd(clientFn, outputFn),
		newJobShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var description string
	var required []string
	var niceToHave []string
	var years int

	cmd := &cobra.Command{
		Use:   "create TITLE",
		Short: "Create a job description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if len(required) == 0 {
				return fmt.Errorf("at least one --required skill is needed")
			}

			job, err := client.CreateJob(CreateJobRequest{
				Title:            args[0],
				Description:      description,
				RequiredSkills:   required,
				NiceToHaveSkills: niceToHave,
				ExperienceYears:  years,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job created: %s", job.ID))
			out.Print(
				[]string{"ID", "TITLE", "REQUIRED", "EXPERIENCE"},
				[][]string{{job.ID, job.Title, strings.Join(job.RequiredSkills, ","), strconv.Itoa(job.ExperienceYears)}},
				job,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Job description text")
	cmd.Flags().StringSliceVar(&required, "required", nil, "Required skill (repeatable)")
	cmd.Flags().StringSliceVar(&niceToHave, "nice-to-have", nil, "Nice-to-have skill (repeatable)")
	cmd.Flags().IntVar(&years, "years", 0, "Required experience in years")

	return cmd
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "TITLE", "REQUIRED", "NICE_TO_HAVE", "EXPERIENCE"},
				[][]string{{
					job.ID,
					job.Title,
					strings.Join(job.RequiredSkills, ","),
					strings.Join(job.NiceToHaveSkills, ","),
					strconv.Itoa(job.ExperienceYears),
				}},
				job,
			)
			return nil
		},
	}
}
