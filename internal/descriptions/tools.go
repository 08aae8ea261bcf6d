package descriptions

// Tool descriptions shown to MCP clients, with practical examples

const (
	PDFExtractStructureDescription = `Extract paragraphs, lists and tables from a PDF in reading order, with stable ids, page numbers and bounding boxes.

**When to use:** Need the logical content of a document rather than a flat text dump: headings and paragraphs as separate records, table cells addressable by row and column.

**How it works:** Tagged PDFs are read through their structure tree, so the author's own paragraph and table markup decides the records. Untagged PDFs fall back to reconstructing tables from ruling lines and text alignment; in that case only tables are returned and the response says source=lattice.

**Output:** One record per element in reading order. Ids look like p001 (paragraph), t001 (table), t001-r002 (row) and t001-r002-c003-p001 (cell). Boxes are x0,y0,x1,y1 in PDF points with the origin at the bottom-left of the page; a record spanning pages lists one box per page joined by "|".

**Examples:**
• Split a contract into clauses: "Extract the structure of contract.pdf and list every paragraph id with its first sentence"
• Pull a price table: "Extract the structure of catalog.pdf and give me table t002 as CSV"

**Parameters:** path (required), normalize (optional, NFKC-folds ligatures and full-width forms), format (optional, "text" or "json").

**Best practices:** Check the error summary at the end: STRUCTURE_MISSING means the lattice fallback ran, TAG_UNRESOLVABLE counts content the document references but never places on a page.`

	PDFExtractTablesDescription = `Extract only the tables of a PDF, rendered as text grids together with their row and cell ids.

**When to use:** The question is about tabular data (invoices, statements, spec sheets) and the surrounding prose is noise.

**How it works:** Uses the document's table markup when it is tagged. Otherwise tables are rebuilt from drawn ruling lines: vertical rules give the columns, text gaps and reliable horizontal rules give the rows, and wrapped text in the last column is folded back into its row.

**Examples:**
• "Get the tables on page 3 of statement.pdf"
• "Extract all tables from datasheet.pdf and compare the voltage columns"

**Parameters:** path (required), page (optional, 1-based; 0 or absent means every page).

**Best practices:** For untagged files only one table per page is reconstructed, covering the extent of the drawn rules. If a grid looks like three equal columns with odd splits, the page lacked vertical rules and an even split was used.`

	PDFPageMarksDescription = `List the marked-content tags of one page and the text captured under each.

**When to use:** Diagnosing why a paragraph came out empty or on the wrong page, or inspecting how a tagged PDF binds its content stream to the structure tree.

**Output:** Every MCID on the page in first-appearance order with its glyph count and a text preview, plus whether the page's BDC/EMC operators were balanced.

**Parameters:** path (required), page (required, 1-based).`

	PDFCacheStatsDescription = `Run a full extraction and report how the page cache performed.

**When to use:** Checking how expensive a document is to process or whether pages failed to parse.

**Output:** A line of the form pages=N, hits=H, misses=M, hitRate=R%, totalParseTime=Tms, avgParseTime=Ams, where a miss is a tag the structure tree references but the page never emitted.

**Parameters:** path (required).`
)
