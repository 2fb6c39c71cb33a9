package gemini

// ResponseFormatInstruction is appended to the configured system instruction so
// replies can be posted without post-processing beyond trimming.
const ResponseFormatInstruction = `

[CRITICAL] Reply with the affirmation text only. Do not add quotes, numbering, headings, hashtags or explanations. Keep it under 300 characters.`
