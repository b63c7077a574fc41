// Package lsp is the language server: a JSON-RPC loop over stdio serving
// hover, definition, completion, symbols and diagnostics for project files.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/msbuild-community/msbuild-dev-tools/internal/config"
	"github.com/msbuild-community/msbuild-dev-tools/internal/index"
	"github.com/msbuild-community/msbuild-dev-tools/internal/logger"
	"github.com/msbuild-community/msbuild-dev-tools/internal/lsp/cache"
	"github.com/msbuild-community/msbuild-dev-tools/internal/schema"
	"github.com/msbuild-community/msbuild-dev-tools/internal/validator"
)

type Server struct {
	session *cache.Session

	in  *bufio.Reader
	out io.Writer
	wmu sync.Mutex // serializes writes to out

	exited bool
}

func NewServer(in io.Reader, out io.Writer) *Server {
	return &Server{
		session: cache.NewSession("default"),
		in:      bufio.NewReader(in),
		out:     out,
	}
}

// Run serves requests until the client disconnects or sends exit.
func (s *Server) Run() error {
	for !s.exited {
		msg, err := s.readMessage()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		s.handleMessage(msg)
	}
	return nil
}

func (s *Server) readMessage() (*JsonRpcMessage, error) {
	var contentLength int
	for {
		line, err := s.in.ReadString('\n')
		if err != nil {
			return nil, err
		}
		if line == "\r\n" {
			break
		}
		fmt.Sscanf(line, "Content-Length: %d", &contentLength)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.in, body); err != nil {
		return nil, err
	}
	var msg JsonRpcMessage
	err := json.Unmarshal(body, &msg)
	return &msg, err
}

func (s *Server) handleMessage(msg *JsonRpcMessage) {
	switch msg.Method {
	case "initialize":
		var params InitializeParams
		json.Unmarshal(msg.Params, &params)
		s.handleInitialize(msg.ID, params)
	case "initialized":
		// nothing to do
	case "shutdown":
		s.respond(msg.ID, nil)
	case "exit":
		s.exited = true
	case "textDocument/didOpen":
		var params DidOpenTextDocumentParams
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			s.handleDidOpen(params)
		}
	case "textDocument/didChange":
		var params DidChangeTextDocumentParams
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			s.handleDidChange(params)
		}
	case "textDocument/didClose":
		var params DidCloseTextDocumentParams
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			s.handleDidClose(params)
		}
	case "textDocument/hover":
		var params TextDocumentPositionParams
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			s.respond(msg.ID, s.handleHover(params))
		} else {
			s.respond(msg.ID, nil)
		}
	case "textDocument/definition":
		var params TextDocumentPositionParams
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			s.respond(msg.ID, s.handleDefinition(params))
		} else {
			s.respond(msg.ID, nil)
		}
	case "textDocument/completion":
		var params TextDocumentPositionParams
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			s.respond(msg.ID, s.handleCompletion(params))
		} else {
			s.respond(msg.ID, nil)
		}
	case "textDocument/documentSymbol":
		var params struct {
			TextDocument TextDocumentIdentifier `json:"textDocument"`
		}
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			s.respond(msg.ID, s.handleDocumentSymbol(params.TextDocument.URI))
		} else {
			s.respond(msg.ID, nil)
		}
	default:
		// Requests (with an ID) must get an answer even when unhandled.
		if msg.ID != nil {
			s.respond(msg.ID, nil)
		}
	}
}

func (s *Server) handleInitialize(id any, params InitializeParams) {
	root := uriToPath(params.RootURI)
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root == "" {
		root = "."
	}

	cfg, err := config.Load(root)
	if err != nil {
		logger.Warnf("settings: %v", err)
		cfg = config.Default()
	}
	logger.SetLevel(cfg.LogLevel)
	sch := schema.LoadFullSchema(root)

	view := s.session.CreateView("default", root, cfg, sch)

	// The initial scan can take a while on big trees; serve requests from
	// open documents meanwhile and publish the index when it lands.
	go func() {
		w := index.NewWorkspace(root)
		w.Exclude = cfg.Index.Exclude
		if path := cfg.CachePath(root); path != "" {
			if store, err := index.OpenStore(path); err == nil {
				w = w.WithStore(store)
			} else {
				logger.Warnf("index cache: %v", err)
			}
		}
		if err := w.Scan(context.Background()); err != nil {
			logger.Warnf("workspace scan: %v", err)
			return
		}
		view.SetWorkspace(w)
		logger.Printf("indexed %d build files under %s", len(w.Files), root)
	}()

	s.respond(id, map[string]any{
		"capabilities": map[string]any{
			"textDocumentSync":       1, // full sync
			"hoverProvider":          true,
			"definitionProvider":     true,
			"documentSymbolProvider": true,
			"completionProvider": map[string]any{
				"triggerCharacters": []string{"$", "(", "@"},
			},
		},
		"serverInfo": map[string]any{"name": "msbt"},
	})
}

func (s *Server) handleDidOpen(params DidOpenTextDocumentParams) {
	path := uriToPath(params.TextDocument.URI)
	view := s.session.ViewOf(path)
	if view == nil {
		return
	}
	doc := view.UpdateDocument(path, params.TextDocument.Version, params.TextDocument.Text)
	s.publishDiagnostics(params.TextDocument.URI, doc)
}

func (s *Server) handleDidChange(params DidChangeTextDocumentParams) {
	if len(params.ContentChanges) == 0 {
		return
	}
	path := uriToPath(params.TextDocument.URI)
	view := s.session.ViewOf(path)
	if view == nil {
		return
	}
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	doc := view.UpdateDocument(path, params.TextDocument.Version, text)
	if doc == nil {
		return // stale version, a newer edit already won
	}
	s.publishDiagnostics(params.TextDocument.URI, doc)
}

func (s *Server) handleDidClose(params DidCloseTextDocumentParams) {
	path := uriToPath(params.TextDocument.URI)
	if view := s.session.ViewOf(path); view != nil {
		view.CloseDocument(path)
	}
	s.notify("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI: params.TextDocument.URI, Diagnostics: []Diagnostic{},
	})
}

func (s *Server) publishDiagnostics(uri string, doc *cache.Document) {
	if doc == nil {
		return
	}
	diags := make([]Diagnostic, 0, len(doc.Diagnostics))
	for _, d := range doc.Diagnostics {
		diags = append(diags, Diagnostic{
			Range:    toRange(doc, d.Range.Start, d.Range.End),
			Severity: severity(d.Level),
			Code:     d.Code,
			Source:   "msbt",
			Message:  d.Message,
		})
	}
	s.notify("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI: uri, Diagnostics: diags,
	})
}

func severity(level validator.DiagnosticLevel) int {
	switch level {
	case validator.LevelError:
		return 1
	case validator.LevelWarning:
		return 2
	default:
		return 3
	}
}

// document resolves a URI to the open document and the request offset.
func (s *Server) document(params TextDocumentPositionParams) (*cache.Document, int) {
	path := uriToPath(params.TextDocument.URI)
	view := s.session.ViewOf(path)
	if view == nil {
		return nil, 0
	}
	doc := view.Snapshot().Document(path)
	if doc == nil || doc.XML == nil {
		return nil, 0
	}
	offset := doc.XML.OffsetAt(toXMLPosition(params.Position))
	return doc, offset
}

func (s *Server) snapshotOf(uri string) *cache.Snapshot {
	view := s.session.ViewOf(uriToPath(uri))
	if view == nil {
		return nil
	}
	return view.Snapshot()
}

func (s *Server) respond(id any, result any) {
	s.send(JsonRpcMessage{Jsonrpc: "2.0", ID: id, Result: result})
}

func (s *Server) notify(method string, params any) {
	raw, _ := json.Marshal(params)
	s.send(JsonRpcMessage{Jsonrpc: "2.0", Method: method, Params: raw})
}

func (s *Server) send(msg JsonRpcMessage) {
	body, _ := json.Marshal(msg)
	s.wmu.Lock()
	defer s.wmu.Unlock()
	fmt.Fprintf(s.out, "Content-Length: %d\r\n\r\n%s", len(body), body)
}

func uriToPath(uri string) string {
	if uri == "" {
		return ""
	}
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	path := strings.TrimPrefix(uri, "file://")
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	return path
}

func pathToURI(path string) string {
	return "file://" + path
}
