package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/ui/report"
)

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Generate, answer, and complete quizzes",
}

var quizNewCmd = &cobra.Command{
	Use:   "new <student>",
	Short: "Generate the student's next quiz, or show the open one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.Service.GenerateQuiz(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, v)
		}
		fmt.Fprint(cmd.OutOrStdout(), report.Quiz(v))
		return nil
	},
}

var quizShowCmd = &cobra.Command{
	Use:   "show <student> <quiz>",
	Short: "Show a quiz",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.Service.GetQuiz(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, v)
		}
		fmt.Fprint(cmd.OutOrStdout(), report.Quiz(v))
		return nil
	},
}

var quizAnswerCmd = &cobra.Command{
	Use:   "answer <student> <quiz> <position> <answer>",
	Short: "Record an answer",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid position %q: %w", args[2], err)
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ack, err := a.Service.SubmitAnswer(cmd.Context(), args[0], args[1], pos, args[3])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, ack)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded answer %d (%d/%d answered).\n", ack.Position, ack.Answered, ack.Total)
		return nil
	},
}

var quizCompleteCmd = &cobra.Command{
	Use:   "complete <student> <quiz>",
	Short: "Grade a quiz and update the student's abilities",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Service.CompleteQuiz(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, res)
		}
		fmt.Fprint(cmd.OutOrStdout(), report.Result(res))
		return nil
	},
}

func init() {
	quizCmd.AddCommand(quizNewCmd)
	quizCmd.AddCommand(quizShowCmd)
	quizCmd.AddCommand(quizAnswerCmd)
	quizCmd.AddCommand(quizCompleteCmd)
}
