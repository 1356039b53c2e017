package gemini

import "time"

// DefaultOCRModel is the default Gemini model for vision-based text recovery
const DefaultOCRModel = "gemini-2.5-flash"

// DefaultGenerationModel is the default Gemini model for text generation
const DefaultGenerationModel = "gemini-2.5-flash"

// EmbeddingModel is the Gemini embedding model
const EmbeddingModel = "text-embedding-004"

// DefaultMaxInlineBytes is the size above which documents go through the
// File API instead of inline request data. The inline request body carries
// base64-encoded content, so this sits below the provider's raw request cap.
const DefaultMaxInlineBytes = 3984588

// FileUploadTimeout is the maximum time to wait for an uploaded file to
// become active
const FileUploadTimeout = 5 * time.Minute

// FilePollInterval is the interval between file state checks while waiting
// for an uploaded file to become active
const FilePollInterval = 1 * time.Second

// OCRPrompt is the prompt for verbatim text recovery from documents the
// local parsers could not handle
const OCRPrompt = `**Core Directive:** You are a High-Fidelity Document Text Extractor. Your sole task is to extract ALL text content from the provided document or image, exactly as it appears.

**Rules:**

1.  **Completeness & Verbatim:** Capture all text without omission. Transcribe content *exactly* as it appears. Do **NOT** interpret, summarize, or add any information.
2.  **Reading Order:** Emit text in natural reading order (top-to-bottom, left-to-right, column by column).
3.  **Tables:** Render tables as plain text rows, cells separated by " | ".
4.  **Non-Text Elements:** For images, charts, and diagrams, emit a single bracketed description, e.g. "[Chart: monthly revenue by region]".

**Output Constraints (Strict):**

*   You **MUST** return *only* the extracted text.
*   You **MUST NOT** include any conversational preambles, explanations, or sign-offs.
*   You **MUST NOT** wrap your output in Markdown code blocks.`

// IndexSummaryPrompt is the prompt for index-quality summarization of
// documents too large to extract verbatim. The output stands in for the
// full text in search, so it favors retrievable detail over brevity.
const IndexSummaryPrompt = `**Persona:** You are an expert analyst producing a search-index surrogate for a document that is too large for verbatim extraction.

**Objective:** Read the entire provided document and produce a detailed, information-dense digest that a search engine can index in place of the full text.

**Instructions:**

1.  **Coverage:** Cover every major section of the document. Do not stop after the opening pages.
2.  **Retrievable Detail:** Preserve concrete facts a reader would search for: names, dates, figures, identifiers, section titles, decisions, and conclusions.
3.  **Structure:** Organize the digest to mirror the document's own structure, one paragraph per major section.

**CRITICAL OUTPUT RULES**

*   You **MUST** return *only* the digest text.
*   **Do NOT** include any introductory or concluding phrases (e.g., "Here is the digest:"). Start directly with the content.
*   You **MUST NOT** wrap your output in Markdown code blocks.`
