// Package extraction turns syllabus text into hard deadlines and class
// sessions.
//
// The package supports:
//   - Trigger gating of oracle proposals by deadline and reading vocabulary
//   - A classification oracle adapter with response repair
//   - Deterministic extraction of in-class assessments and DEADLINE markers
//   - A keyword fallback used when the oracle is absent or fully unavailable
//   - An assembler that deduplicates deadlines and merges class sessions
//
// # Architecture
//
// The main components are:
//   - Pipeline: fans snippets out to the oracle, then reduces all item streams
//   - Adapter: builds the oracle request and parses its answer into an Outcome
//   - Completer: the transport behind the Adapter (OpenAI, Anthropic, Ollama)
//   - PatternExtractor: single-pass cursor scan over the whole document
//   - KeywordExtractor: heuristic substitute for the oracle
//   - Assembler: first-wins deduplication and session merging
//
// # Usage
//
// Build an oracle from configuration and run the pipeline:
//
//	completer, err := extraction.NewCompleter(extraction.ProviderConfig{
//	    Provider: "openai",
//	    APIKey:   key,
//	})
//	adapter := extraction.NewAdapter(completer)
//	p := extraction.NewPipeline(extraction.DefaultPipelineConfig(), adapter)
//	res, err := p.Run(ctx, extraction.Input{Text: text})
//	for _, it := range res.Items {
//	    fmt.Println(it.Kind(), it.Date(), it.Title())
//	}
//
// A nil adapter is valid: the pipeline then relies on the deterministic and
// keyword extractors only and never returns an empty item list.
//
// # Dates
//
// Every date carried by an item is a raw validated token from the source
// text ("Oct 3", "13/10/2023"). No year or timezone resolution happens here.
// The one exception is the keyword fallback, which stamps the current day in
// ISO form when it finds a keyword line with no date nearby.
package extraction
