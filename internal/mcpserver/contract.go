package mcpserver

// NoteFormatContract describes the canonical note format that LLM
// consumers should follow when creating or updating notes.
const NoteFormatContract = `# Othala Note Format Contract

Every note stored in Othala SHOULD follow these conventions.

## Structure

A note is plain text (Markdown welcome) with two kinds of inline markers:

- ` + "`" + `[[Context Name]]` + "`" + ` — a reference to a context. Contexts are the
  organizing principle: they are created implicitly the first time a note
  mentions them and form the knowledge graph.
- ` + "`" + `#hashtag` + "`" + ` — a freeform tag used for cross-cutting filtering.

## Fields

- **id** (required): caller-generated, unique, never reused. Prefer a
  timestamp- or ULID-style identifier.
- **key_context** (required): the primary context the note belongs to.
  It is always linked like any other context.
- **contexts** (optional): additional context names to link.
- **tags** (optional): hashtags without the ` + "`" + `#` + "`" + ` prefix, lowercase.
- **note_type** (optional): one of ` + "`" + `idea` + "`" + `, ` + "`" + `task` + "`" + `, ` + "`" + `journal` + "`" + `, ` + "`" + `reference` + "`" + `.
- **status** (optional, task-like notes): one of ` + "`" + `TODO` + "`" + `, ` + "`" + `DOING` + "`" + `, ` + "`" + `DONE` + "`" + `, ` + "`" + `OBSOLETE` + "`" + `.
- **deadline** (optional): RFC 3339 timestamp.

## Rules

1. **Context names are case-sensitive and globally unique.** ` + "`" + `[[Work]]` + "`" + `
   and ` + "`" + `[[work]]` + "`" + ` are different contexts; pick one spelling and stay with it.
   Use ` + "`" + `search_contexts` + "`" + ` before inventing a new name.
2. **Reference contexts inline** where they are relevant: ` + "`" + `discussed in
   [[Weekly Sync]]` + "`" + ` reads better than a bare list of links.
3. **Renames propagate.** When a context is renamed via ` + "`" + `rename_context` + "`" + `,
   inline ` + "`" + `[[references]]` + "`" + ` in existing notes are rewritten automatically;
   never rewrite them by hand.
4. **Tags are lowercase**, kebab-case for multi-word tags (e.g.
   ` + "`" + `follow-up` + "`" + `, ` + "`" + `book-notes` + "`" + `).
5. **Keep notes atomic.** One idea, task, or observation per note; link
   related notes through shared contexts rather than merging them.

## Example

` + "```" + `
Reading [[Designing Data-Intensive Applications]] for the [[Storage]]
study group. Chapter 3 maps well onto our LSM discussion. #book-notes
` + "```" + `

with ` + "`" + `key_context` + "`" + ` = ` + "`" + `Storage` + "`" + `, ` + "`" + `note_type` + "`" + ` = ` + "`" + `reference` + "`" + `,
` + "`" + `tags` + "`" + ` = ` + "`" + `book-notes` + "`" + `.
`
