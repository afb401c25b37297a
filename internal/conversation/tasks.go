package conversation

import "fmt"

// Task frames one kind of investigation: who the model is told it is, what
// it must find out and what extra guidance its analysis follows.
type Task struct {
	Name     string
	System   string
	Question string
	// Guidelines are placed before the shared analysis guidelines.
	Guidelines string
	// FileNotes adds every file summary to the static context.
	FileNotes bool
}

// Ask is the general question task.
func Ask(question string) Task {
	return Task{Name: "ask", System: systemPrompt, Question: question}
}

const tellMeAboutSystemPrompt = `You are an AI assistant that helps developers understand and analyze an existing software project.
Begin your analysis with: "Let's inspect the project to answer the question: " followed by the question in your own words.
Start with a high-level overview of the relevant components, then dive into specific areas using the project structure, file contents and searches.
Keep explanations clear and concise. When you are unsure about something, say so and suggest how to find out.
Consider the project structure and architecture, the design patterns in use and any framework configuration.
Conclude with a clear, concise summary that directly addresses the question.`

// TellMeAbout explores a topic of the project and ends with a summary.
func TellMeAbout(question string) Task {
	return Task{Name: "tell_me_about", System: tellMeAboutSystemPrompt, Question: question}
}

const traceSystemPrompt = `You are an AI assistant specialized in analyzing server applications.
You help engineers understand the flow of data and the business logic behind each request.`

const traceQuestionTemplate = `Given an API request: %s

1. Trace the request through the code and describe, step by step, the flow of data and logic from receiving the request to sending the response.
2. What is the response data for this request?
3. Are there any special business rules or implementation details worth noting?`

const traceGuidelines = `1. Analyze the provided code thoroughly.
2. Explain the data flow step by step, from the HTTP request to the response.
3. Highlight special business logic and notable implementation details.
4. When relevant, describe the structure of the data being returned.
5. Keep explanations clear and concise, for experienced developers.
6. Give partial answers or hypotheses when information is incomplete, and request what is missing.
Keep the key findings consistent across rounds and carry them into the final answer.`

// TraceAPIRequest follows one request, such as "GET /cities/{name}", from
// the handler to the response.
func TraceAPIRequest(request string) Task {
	return Task{
		Name:       "trace_api_request",
		System:     traceSystemPrompt,
		Question:   fmt.Sprintf(traceQuestionTemplate, request),
		Guidelines: traceGuidelines,
	}
}

const summarizeAPISystemPrompt = `You are an AI assistant that helps developers understand existing projects and the API they expose.`

const summarizeAPIQuestion = `Analyze the project structure, identify its API endpoints and write detailed notes on how each one is implemented, with a strong focus on data flow.

For each endpoint, write a markdown section:

## [Endpoint Name]

1. **Purpose**: what the endpoint is for.
2. **Functionality**: what it does, in detail.
3. **Request Structure**: HTTP method, path parameters, query parameters, request body.
4. **Response Structure**: response body and possible status codes.
5. **Data Flow**:
   - For reads: how data is retrieved, including database queries, external calls and caches, and how it is transformed or aggregated on the way.
   - For writes: how data is validated, transformed and saved, the schema and constraints involved, and any cascading effects.
6. **Data Processing**: business logic, caching, and asynchronous or background work triggered by the endpoint.
7. **Key Classes/Methods**: the main classes and methods involved and the role of each in the data flow.

Give code snippets and file locations where relevant.`

const summarizeAPIGuidelines = `Prioritize thoroughness over speed. On a large project, cover the most important endpoints first, but make the data flow analysis of each one as complete as possible.
Always err on the side of more detail in data flow analysis.`

// SummarizeAPI catalogues every endpoint of the project. File notes are
// part of its context so endpoints can be found without searching.
func SummarizeAPI() Task {
	return Task{
		Name:       "summarize_api",
		System:     summarizeAPISystemPrompt,
		Question:   summarizeAPIQuestion,
		Guidelines: summarizeAPIGuidelines,
		FileNotes:  true,
	}
}
