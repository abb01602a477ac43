package policyopa

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"keyward/internal/domain"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.keyward.policy.result"

//go:embed policy/*.rego
var builtinPolicy embed.FS

type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
}

// NewEngine compiles the built-in signing policy.
func NewEngine(ctx context.Context) (*Engine, error) {
	sub, err := fs.Sub(builtinPolicy, "policy")
	if err != nil {
		return nil, err
	}
	return NewEngineFromFS(ctx, sub)
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	if bundlePath == "" {
		return nil, errors.New("policy bundle path is required")
	}
	return NewEngineFromFS(ctx, os.DirFS(bundlePath))
}

// NewEngineFromFS compiles every .rego file in fsys.
func NewEngineFromFS(ctx context.Context, fsys fs.FS) (*Engine, error) {
	modules, bundleHash, err := readModules(fsys)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, errors.New("policy bundle has no rego modules")
	}

	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	opts := []func(*rego.Rego){
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
	}
	for _, m := range modules {
		opts = append(opts, rego.Module(m.path, m.source))
	}
	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile signing policy: %w", err)
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}
	return &Engine{query: prepared, bundleHash: bundleHash}, nil
}

func (e *Engine) BundleHash() string {
	return e.bundleHash
}

func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error) {
	if e == nil {
		return domain.PolicyEvaluation{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyEvaluation{}, errors.New("empty policy result")
	}
	result, err := decodePolicyResult(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	sort.Slice(result.Deny, func(i, j int) bool {
		if result.Deny[i].Code == result.Deny[j].Code {
			return result.Deny[i].Message < result.Deny[j].Message
		}
		return result.Deny[i].Code < result.Deny[j].Code
	})
	return domain.PolicyEvaluation{BundleHash: e.bundleHash, Result: result}, nil
}

func decodePolicyResult(value any) (domain.PolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyResult{}, err
	}
	return result, nil
}

type regoModule struct {
	path   string
	source string
}

// readModules loads .rego files in path order and hashes them as a list of
// (path, sha256) pairs.
func readModules(fsys fs.FS) ([]regoModule, string, error) {
	var modules []regoModule
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(path.Base(p), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(p, ".rego") {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		modules = append(modules, regoModule{path: p, source: string(data)})
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("read policy bundle: %w", err)
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].path < modules[j].path })

	type fileHash struct {
		Path   string `json:"path"`
		SHA256 string `json:"sha256"`
	}
	files := make([]fileHash, 0, len(modules))
	for _, m := range modules {
		sum := sha256.Sum256([]byte(m.source))
		files = append(files, fileHash{Path: m.path, SHA256: hex.EncodeToString(sum[:])})
	}
	payload, err := json.Marshal(files)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(payload)
	return modules, hex.EncodeToString(sum[:]), nil
}

func assertNoForbiddenBuiltins(compiler *ast.Compiler) error {
	if compiler == nil {
		return errors.New("policy compiler is nil")
	}
	forbidden := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, ok := ast.BuiltinMap[name]; !ok {
				return false
			}
			if _, ok := allowedBuiltins[name]; ok {
				return false
			}
			forbidden[name] = struct{}{}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}
