package runtime

import "fmt"

// DirectivePrompt asks the service for the next command of task.
func DirectivePrompt(task string) string {
	return fmt.Sprintf("Original task: %s. Suggest the next command to run. "+
		"Format your response as: COMMAND: <command> followed by an explanation. "+
		"Or say DONE if the task is complete.", task)
}

// ResultPrompt reports the captured streams of an executed command verbatim.
func ResultPrompt(stdout, stderr string) string {
	return fmt.Sprintf("Command output:\nstdout:\n%s\nstderr:\n%s", stdout, stderr)
}

// SpawnFailurePrompt reports a command that could not be started.
func SpawnFailurePrompt(err error) string {
	return fmt.Sprintf("Command failed: %v", err)
}

// RejectionPrompt reports that the user declined the proposed command.
func RejectionPrompt(comment string) string {
	return fmt.Sprintf("Command was rejected by user.\nFEEDBACK: %s\n\nPlease suggest an alternative.", comment)
}
