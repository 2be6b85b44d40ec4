package describe

import (
	"fmt"
)

const promptTemplate = `You are a service planner and a senior developer.
Write a short report on the resource below, focused on its practical impact,
based on the uploaded files and the user's hint.

[Summary of the uploaded files]
%s

[User hint]
%s

Guidelines:
1. Use a concise, professional report style.
2. Describe concrete situations rather than generalities.
3. Ground the explanation in how the code actually works.

Output format (Markdown):

### Pain Point
(One or two sentences on the inefficiency or risk this resource removes.)

### Solution
- **Logic**: (how the main functions process data)
- **Flow**: (input, processing and result)

### Business Impact
- (expected effect)
- (expected effect)
`

func Prompt(digest string, hint string) string {
	return fmt.Sprintf(promptTemplate, digest, hint)
}
