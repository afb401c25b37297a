package reviewer

const reviewPromptTemplate = `
You are reviewing a conversation between a human and an AI assistant that is analyzing a software project. Decide whether the conversation is making progress or is at risk of looping forever.

Conversation so far:

%s
===

Answer the following questions:

1. Is the conversation moving towards an answer to the main question? Why or why not?

2. Is the AI stuck, or repeating requests for information it already has or cannot get?

3. Does the AI already have enough information to answer the main question? If not, what crucial information is missing?

4. Which next step do you recommend, and why?
   a) Continue the conversation as is
   b) Push for a conclusion by removing the option to request more information

Be concise but thorough.

End your analysis with a recommendation in exactly this format:

RECOMMENDATION: [CONTINUE|CONCLUDE]
REASON: [Brief explanation for the recommendation]
EFFICIENCY_SCORE: [1-10]

If you recommend CONCLUDE, also provide:
FINAL_ANSWER_PROMPT: [A concise prompt asking the main AI to formulate its final answer]

Meaning of the recommendations:
- CONTINUE: the conversation is progressing and should go on.
- CONCLUDE: there is enough information; the main AI should give its final answer now.
`
