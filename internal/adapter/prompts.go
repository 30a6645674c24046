package adapter

import "fmt"

const systemConstraints = `You are a developer assistant editing a live project.
Rules:
- Only create or modify files inside the project sandbox, using paths relative to the project root.
- Return full file contents, never partial snippets.
- Add unit tests under the tests directory when behaviour changes.
- Never embed secrets; read them from environment variables.
- Keep new dependencies to a minimum. When one is needed, include the updated dependency manifest.`

const changeRequestTemplate = `INSTRUCTION:
%s

PROJECT CONTEXT:
%s

OUTPUT:
Reply with JSON of the form {"files": [{"path": "relative/path", "content": "full new file content"}]}.
If JSON is not possible, give each file as a header line "--- relative/path ---" followed by its full content.`

const classifyTemplate = `Classify the message below.
NORMAL_CHAT: conversation or questions that need no code change.
DEV_INSTRUCTION: a request to change code, configuration, files or deployment.
For DEV_INSTRUCTION also list the likely target files and a one sentence summary.
Reply with JSON only: {"type": "DEV_INSTRUCTION" | "NORMAL_CHAT", "targets": [...], "summary": "..."}

MESSAGE:
%s`

func changeRequestPrompt(projectContext, instruction string) string {
	return fmt.Sprintf(changeRequestTemplate, instruction, projectContext)
}

func classifyPrompt(text string) string {
	return fmt.Sprintf(classifyTemplate, text)
}
