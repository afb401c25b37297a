package conversation

import (
	"fmt"
	"strings"

	"gistloop/internal/findings"
)

const systemPrompt = `You are an AI assistant that helps developers understand an existing software project.
Investigate the question you are given using the project structure, the package notes and any information you request.
Start with a high-level view of the relevant components, then go deeper where needed.
State clearly when you are unsure about something.
Conclude with a clear, concise answer to the original question.`

const cachedContextTemplate = `
Below is the project structure for your reference:
%s
end of project tree

and summaries of the packages in the project:
%s
end of package notes
`

const fileNotesTemplate = `
and notes of the files in the project:
%s
end of file notes
`

// requestInstructions describes the directive formats the parser accepts.
const requestInstructions = `If you need more information, use the following formats to request it:

1. To search for keywords, request them in this specific format only:
   [I need to search for keywords: <keyword>keyword1</keyword>, <keyword>keyword2</keyword>]
   Then I will provide the files that contain the keywords, in format:
    You requested to search for : keyword
    Here are the results:<files><file>path/to/File1.java</file>, <file>path/to/File2.java</file></files>
   or, if no file matches:
    No matching files found with 'keyword'
   Check the DO_NOT_SEARCH section to avoid repeating a search that found nothing.

2. To request file contents, request them in this specific format only:
   [I need content of files: <file>File1.java</file>, <file>File2.java</file>]
   Then I will provide the summary and content of each file in format:
    <file name="file name">
        <summary>summary of file</summary>
        <content>file content</content>
    </file>
   A file that does not exist is reported once and must not be requested again.

3. To get information about packages, request them in this specific format only:
   [I need info about packages: <package>com.example.package1</package>, <package>com.example.package2</package>]
   Then I will provide the summary of each package in format:
    <package name="package name">
        <notes>summary of package</notes>
        <sub_packages>sub packages</sub_packages>
        <files>files in the package</files>
    </package>

Put every request at the end of your response, after this marker:

**Next Steps**
[your request to search for keywords]
[your request to read files]
[your request to read packages]

Leave out the **Next Steps** section entirely when you need nothing more.`

const analysisGuidelines = `If you encounter unclear or complex code, state your assumptions and any alternative interpretations.
Relate every piece of information you receive back to the original question.
Structure your response using markdown.

When you identify key findings, present them in the following format:

KEY_FINDINGS:
- [BUSINESS_RULE] Description of a business rule
- [IMPLEMENTATION_DETAIL] Description of an important implementation detail
- [DATA_FLOW] Description of a significant aspect of the data flow
- [ARCHITECTURE] Description of a notable architectural decision
- [SPECIAL_CASE] Description of any special cases or exceptions

Each key finding starts with its tag in square brackets.`

const noMoreRequests = `You cannot request more information. Answer with what you already know.`

const defaultFinalAnswerPrompt = `You have gathered enough information. Give your final, complete answer to the question now.`

func cachedContext(tree, notes string) string {
	return fmt.Sprintf(cachedContextTemplate, tree, notes)
}

func withFileNotes(context, fileNotes string) string {
	return context + fmt.Sprintf(fileNotesTemplate, fileNotes)
}

// promptInput is everything that varies between rounds.
type promptInput struct {
	Iteration      int
	Question       string
	Findings       *findings.Tracker
	Previous       string
	NewInformation string
	Suppress       bool
	AbsentKeywords []string
	MissingFiles   []string
	FinalPrompt    string
	Guidelines     string
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

func doNotSection(keywords, files []string) string {
	var b strings.Builder
	if len(keywords) > 0 {
		b.WriteString("Do not search for these keywords again, nothing matched them: " + strings.Join(keywords, ", ") + "\n")
	}
	if len(files) > 0 {
		b.WriteString("Do not request these files again, they do not exist: " + strings.Join(files, ", ") + "\n")
	}
	return b.String()
}

func userPrompt(in promptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "===CONVERSATION_CONTEXT===\nIteration: %d\n\n", in.Iteration)
	fmt.Fprintf(&b, "===QUESTION===\n%s\n\n", in.Question)
	fmt.Fprintf(&b, "===KEY_FINDINGS===\n%s\n\n", orNone(in.Findings.String()))
	fmt.Fprintf(&b, "===PREVIOUS_ANALYSIS===\n%s\n\n", orNone(in.Previous))
	fmt.Fprintf(&b, "===NEW_INFORMATION===\n%s\n\n", orNone(in.NewInformation))
	instructions := requestInstructions
	if in.Suppress || in.FinalPrompt != "" {
		instructions = noMoreRequests
	}
	fmt.Fprintf(&b, "===INSTRUCTIONS_FOR_ADDITIONAL_REQUESTS===\n%s\n\n", instructions)
	fmt.Fprintf(&b, "===DO_NOT_SEARCH===\n%s\n\n", orNone(doNotSection(in.AbsentKeywords, in.MissingFiles)))
	guidelines := analysisGuidelines
	if in.Guidelines != "" {
		guidelines = in.Guidelines + "\n\n" + analysisGuidelines
	}
	fmt.Fprintf(&b, "===GUIDELINES_FOR_ANALYSIS===\n%s\n", guidelines)
	if in.FinalPrompt != "" {
		fmt.Fprintf(&b, "\n===FINAL_ANSWER===\n%s\n", in.FinalPrompt)
	}
	return b.String()
}
