package graph

// extractionPrompt asks the model to apply the article delimiter rule to
// one chunk.
const extractionPrompt = `You split Portuguese legal text into its preamble and its articles.

Rules:
- Text before the first article heading ("Artigo N.º", "Art. N.º", "Artigo único") is the preamble.
- Each article runs from its heading up to the next heading or the end of the text.
- Copy article text verbatim, including the heading. Do not reformat, translate or truncate.
- If there are no article headings, return the whole text as preamble and an empty articles array.

Return a JSON object with exactly two keys:
  "preamble_text" : string
  "articles"      : array of {"article_number": string, "official_text": string}

TEXT:
%s`

// analysisPrompt is the Map prompt. Arguments: law title, law preamble,
// category list, articles block.
const analysisPrompt = `You are a Portuguese legal analyst. Analyse every article below from the law "%s".

LAW PREAMBLE (context only):
%s

CATEGORIES (use exactly one of these values for suggested_category):
%s

For each article return:
- "article_number"     : the article label exactly as given after ###
- "suggested_category" : one category from the list
- "tags"               : {"persons": [...], "organizations": [...], "concepts": [...]}, names as written
- "cross_references"   : array of {"relationship", "type", "number", "article", "description", "url", "full_supersession"}
    relationship is one of references, amends, revokes, modifies, regulates, references_internal.
    Use references_internal for articles of this same law. Set full_supersession only when the text replaces the target as a whole.
- "translations"       : {"pt": {"title", "summary"}, "en": {"title", "summary"}}
    Write a short title and a plain-language summary in your own words. Never copy the article text.

Return a JSON object with one key "articles" holding one entry per article. Do NOT include any text outside the JSON object.

ARTICLES:
%s`

// synthesisPrompt is the final Reduce prompt. Arguments: law title,
// category list, article summaries.
const synthesisPrompt = `You are a Portuguese legal analyst. Below are summaries of the articles of "%s".
Write the law-level title and summary in Portuguese and English, and pick its category.

CATEGORIES:
%s

Return a JSON object:
  "suggested_category" : one category from the list
  "translations"       : {"pt": {"title", "summary"}, "en": {"title", "summary"}}

SUMMARIES:
%s`

// preSummaryPrompt condenses one batch of Reduce input. Arguments: law
// title, lines.
const preSummaryPrompt = `Condense the following Portuguese summaries of articles of "%s" into one short Portuguese paragraph.
Keep every distinct obligation, right and actor. Return a JSON object {"summary": string}.

SUMMARIES:
%s`

// translationPrompt asks for a plain English rendering.
const translationPrompt = `Translate the following Portuguese legal text into English. Reply with the translation only.

%s`
