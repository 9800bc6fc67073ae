package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/nupython/compiler"
	"github.com/chazu/nupython/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "nupython-lsp"

var keywords = []string{"pass", "print"}

// LspServer publishes the interpreter's diagnostics to editors and answers
// hover, completion, definition and reference queries from the last run of
// each open document.
type LspServer struct {
	worker     *RunWorker
	ownsWorker bool

	mu   sync.Mutex
	docs map[string]*document // URI → latest analysis

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// document is one open file and the outcome of running it.
type document struct {
	text        string
	prog        *compiler.Program
	parseErrors []*compiler.ParseError
	result      *vm.Result // nil when the document has syntax errors
}

// NewLSP creates an LSP server. Documents are executed on worker; when
// worker is nil the server starts and owns a single-goroutine pool.
func NewLSP(worker *RunWorker) *LspServer {
	s := &LspServer{
		worker:  worker,
		docs:    make(map[string]*document),
		version: "0.1.0",
	}
	if s.worker == nil {
		s.worker = NewRunWorker(1)
		s.ownsWorker = true
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Infof("nuPython LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	if s.ownsWorker {
		s.worker.Stop()
	}
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc := s.update(uri, params.TextDocument.Text)
	s.publishDiagnostics(ctx, uri, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := s.update(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, doc)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update analyses text and stores it as the current state of uri.
func (s *LspServer) update(uri protocol.DocumentUri, text string) *document {
	doc := s.analyze(text)

	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()

	return doc
}

func (s *LspServer) lookup(uri protocol.DocumentUri) (*document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[string(uri)]
	return doc, ok
}

// analyze parses text and, when it is free of syntax errors, runs it with
// output discarded.
func (s *LspServer) analyze(text string) *document {
	p := compiler.NewParser(text)
	doc := &document{
		text:        text,
		prog:        p.ParseProgram(),
		parseErrors: p.Errors(),
	}
	if len(doc.parseErrors) > 0 {
		return doc
	}

	result, err := s.worker.Exec(context.Background(), doc.prog, vm.Options{})
	if err != nil {
		log.Warningf("analysis run failed: %v", err)
		return doc
	}
	doc.result = result
	return doc
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := s.lookup(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(doc, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.lookup(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(doc, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	doc, ok := s.lookup(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	if loc := definition(doc, uri, word); loc != nil {
		return *loc, nil
	}
	return nil, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	doc, ok := s.lookup(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return references(doc, uri, word), nil
}

// --- Document-backed logic ---

func complete(doc *document, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	if doc.result != nil {
		for _, slot := range doc.result.Memory {
			if !strings.HasPrefix(slot.Name, prefix) {
				continue
			}
			kind := protocol.CompletionItemKindVariable
			detail := fmt.Sprintf("address %d, %s", slot.Address, slot.Value.Kind())
			name := slot.Name
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &name,
			})
		}
	}

	for _, kw := range keywords {
		if strings.HasPrefix(kw, prefix) {
			kind := protocol.CompletionItemKindKeyword
			label := kw
			items = append(items, protocol.CompletionItem{
				Label:      label,
				Kind:       &kind,
				InsertText: &label,
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

func hover(doc *document, word string) *protocol.Hover {
	if doc.result == nil {
		return nil
	}
	for _, slot := range doc.result.Memory {
		if slot.Name != word {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "```\n%s: %s = %s\n```\n", slot.Name, slot.Value.Kind(), slot.Value)
		fmt.Fprintf(&b, "address %d after the last run", slot.Address)
		return &protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: b.String(),
			},
		}
	}
	return nil
}

// definition returns the assignment that allocated name.
func definition(doc *document, uri protocol.DocumentUri, name string) *protocol.Location {
	failed := make(map[int]bool)
	if doc.result != nil {
		for _, d := range doc.result.Diagnostics {
			failed[d.Stmt] = true
		}
	}
	for i, stmt := range doc.prog.Stmts {
		if a, ok := stmt.(*compiler.Assignment); ok && a.Name == name && !failed[i] {
			return &protocol.Location{URI: uri, Range: nameRange(a.Span().Start, name)}
		}
	}
	return nil
}

// references returns every assignment to and read of name, in source order.
func references(doc *document, uri protocol.DocumentUri, name string) []protocol.Location {
	var locations []protocol.Location
	compiler.Inspect(doc.prog, func(n compiler.Node) bool {
		switch n := n.(type) {
		case *compiler.Assignment:
			if n.Name == name {
				locations = append(locations, protocol.Location{URI: uri, Range: nameRange(n.Span().Start, name)})
			}
		case *compiler.Identifier:
			if n.Name == name {
				locations = append(locations, protocol.Location{URI: uri, Range: nameRange(n.Span().Start, name)})
			}
		}
		return true
	})
	return locations
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(doc),
	})
}

// diagnostics converts syntax errors and semantic diagnostics into LSP
// form. Semantic diagnostics cover the whole line of their statement.
func diagnostics(doc *document) []protocol.Diagnostic {
	result := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError
	source := lspName

	for _, e := range doc.parseErrors {
		result = append(result, protocol.Diagnostic{
			Range:    nameRange(e.Pos, " "),
			Severity: &severity,
			Source:   &source,
			Message:  e.Msg,
		})
	}

	if doc.result == nil {
		return result
	}
	lines := strings.Split(doc.text, "\n")
	for _, d := range doc.result.Diagnostics {
		line := d.Line - 1
		width := 0
		if line >= 0 && line < len(lines) {
			width = len(strings.TrimRight(lines[line], "\r"))
		}
		if line < 0 {
			line = 0
		}
		code := protocol.IntegerOrString{Value: d.Kind.String()}
		result = append(result, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: protocol.UInteger(line), Character: 0},
				End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(width)},
			},
			Severity: &severity,
			Code:     &code,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return result
}

// nameRange is the range covering text starting at a 1-based source
// position.
func nameRange(pos compiler.Position, text string) protocol.Range {
	line := protocol.UInteger(max(pos.Line-1, 0))
	col := protocol.UInteger(max(pos.Column-1, 0))
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: col},
		End:   protocol.Position{Line: line, Character: col + protocol.UInteger(len(text))},
	}
}

// --- Text extraction helpers ---

func isIdentRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the identifier fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentRune(rune(line[end])) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
