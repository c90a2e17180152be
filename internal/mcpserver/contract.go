package mcpserver

// NoteFormatContract describes the canonical on-disk note document format
// for LLM consumers that read or reason about raw note files.
const NoteFormatContract = `# LiFlux Note Document Format

Every note stored by LiFlux is a single Markdown file with a JSON
frontmatter block.

## Structure

` + "```" + `markdown
---
{
  "id": "V1StGXR8_Z5jdHi6B-myT",
  "createdAt": "2025-01-15T10:30:00Z",
  "updatedAt": "2025-01-15T10:30:00.001Z",
  "isTrashed": false,
  "attachments": []
}
---
Body text in standard Markdown.
` + "```" + `

## Rules

1. **The frontmatter fences are the first thing in the file.** The opening
   ` + "`" + `---` + "`" + ` line is line one; the closing ` + "`" + `---` + "`" + ` line ends the block.
2. **The metadata is a single JSON object.** Keys are fixed schema fields;
   never invent new ones.
3. **Identity and timestamps are server-managed.** ` + "`" + `id` + "`" + ` is a 21-character
   URL-safe identifier, ` + "`" + `createdAt` + "`" + ` never changes, ` + "`" + `updatedAt` + "`" + ` is
   always strictly after ` + "`" + `createdAt` + "`" + `. Timestamps are RFC 3339 UTC.
4. **Trashed notes keep their file.** ` + "`" + `isTrashed: true` + "`" + ` plus a
   ` + "`" + `trashedAt` + "`" + ` timestamp marks a note that is hidden from listings and
   search but still readable by id. A second delete removes the file.
5. **Attachment URIs inside the document are store-relative**, of the form
   ` + "`" + `media/<filename>` + "`" + `. They are resolved to absolute paths when the
   note is loaded. Never write absolute paths into a document.
6. **A file without frontmatter is still a valid note.** Its whole content
   is the body; identity falls back to the filename stem.
7. **Encoding** is UTF-8.

## Title and preview derivation

Notes have no separate title field. The first non-blank line of the body,
truncated to 50 characters, is the display title ("Untitled" when the body
is blank). Previews also carry the first 100 characters of content as a
snippet and the first attachment's thumbnail.

## Media

Use the ` + "`" + `attach_media` + "`" + ` tool to add images. Files live in the shared
` + "`" + `media/` + "`" + ` directory (flat, no sub-folders) and are served over HTTP at
` + "`" + `/media/<filename>` + "`" + `.
`
