package bridge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Schema is a set of compiled .proto files and the services they declare.
type Schema struct {
	files    *protoregistry.Files
	types    *dynamicpb.Types
	services map[string]*Service
}

// Service is a gRPC service from the schema.
type Service struct {
	// Name is the fully qualified service name, e.g. "echo.v1.Echo".
	Name    string
	Methods map[string]*Method
}

// Method is one RPC of a Service.
type Method struct {
	Name string

	// Path is the gRPC method path without the leading slash,
	// "package.Service/Method". It is also the stub path calls are sent to.
	Path string

	ClientStreaming bool
	ServerStreaming bool

	desc protoreflect.MethodDescriptor
}

// LoadSchema compiles the given .proto files. Imports are looked up in
// importPaths, then next to the files themselves; the well-known
// google/protobuf imports are always available.
func LoadSchema(paths []string, importPaths []string) (*Schema, error) {
	if len(paths) == 0 {
		return nil, ErrNoProtoFiles
	}

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&fileResolver{
			importPaths: importPaths,
			basePaths:   paths,
		}),
	}
	compiled, err := compiler.Compile(context.Background(), paths...)
	if err != nil {
		return nil, fmt.Errorf("bridge: compile proto files: %w", err)
	}

	files := make([]protoreflect.FileDescriptor, 0, len(compiled))
	for _, f := range compiled {
		files = append(files, f)
	}
	return NewSchema(files...)
}

// NewSchema builds a Schema from already compiled file descriptors.
func NewSchema(files ...protoreflect.FileDescriptor) (*Schema, error) {
	s := &Schema{
		files:    new(protoregistry.Files),
		services: make(map[string]*Service),
	}
	for _, fd := range files {
		if err := s.register(fd); err != nil {
			return nil, err
		}

		svcs := fd.Services()
		for i := range svcs.Len() {
			s.addService(svcs.Get(i))
		}
	}
	if len(s.services) == 0 {
		return nil, ErrNoServices
	}
	s.types = dynamicpb.NewTypes(s.files)
	return s, nil
}

// register adds fd and, first, everything it imports.
func (s *Schema) register(fd protoreflect.FileDescriptor) error {
	if _, err := s.files.FindFileByPath(fd.Path()); err == nil {
		return nil
	}
	imports := fd.Imports()
	for i := range imports.Len() {
		if err := s.register(imports.Get(i).FileDescriptor); err != nil {
			return err
		}
	}
	if err := s.files.RegisterFile(fd); err != nil {
		return fmt.Errorf("bridge: register %s: %w", fd.Path(), err)
	}
	return nil
}

func (s *Schema) addService(sd protoreflect.ServiceDescriptor) {
	svc := &Service{
		Name:    string(sd.FullName()),
		Methods: make(map[string]*Method),
	}
	methods := sd.Methods()
	for i := range methods.Len() {
		md := methods.Get(i)
		svc.Methods[string(md.Name())] = &Method{
			Name:            string(md.Name()),
			Path:            svc.Name + "/" + string(md.Name()),
			ClientStreaming: md.IsStreamingClient(),
			ServerStreaming: md.IsStreamingServer(),
			desc:            md,
		}
	}
	s.services[svc.Name] = svc
}

// Service returns a service by its fully qualified name, or nil.
func (s *Schema) Service(name string) *Service {
	return s.services[name]
}

// ServiceNames returns every service name in sorted order.
func (s *Schema) ServiceNames() []string {
	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Files returns the registry of compiled files and their imports.
func (s *Schema) Files() *protoregistry.Files {
	return s.files
}

// Types resolves message and extension types declared by the schema.
func (s *Schema) Types() *dynamicpb.Types {
	return s.types
}

// MethodNames returns the method names in sorted order.
func (svc *Service) MethodNames() []string {
	names := make([]string, 0, len(svc.Methods))
	for name := range svc.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsUnary reports whether neither side streams.
func (m *Method) IsUnary() bool {
	return !m.ClientStreaming && !m.ServerStreaming
}

// Kind describes the streaming shape of the method.
func (m *Method) Kind() string {
	switch {
	case m.ClientStreaming && m.ServerStreaming:
		return "bidi_streaming"
	case m.ClientStreaming:
		return "client_streaming"
	case m.ServerStreaming:
		return "server_streaming"
	default:
		return "unary"
	}
}

// Input returns the request message descriptor.
func (m *Method) Input() protoreflect.MessageDescriptor {
	return m.desc.Input()
}

// Output returns the response message descriptor.
func (m *Method) Output() protoreflect.MessageDescriptor {
	return m.desc.Output()
}

// fileResolver finds imports on disk: in the import paths, next to the
// files being compiled, then as given.
type fileResolver struct {
	importPaths []string
	basePaths   []string
}

func (r *fileResolver) FindFileByPath(path string) (protocompile.SearchResult, error) {
	candidates := make([]string, 0, len(r.importPaths)+len(r.basePaths)+1)
	for _, dir := range r.importPaths {
		candidates = append(candidates, filepath.Join(dir, path))
	}
	for _, base := range r.basePaths {
		candidates = append(candidates, filepath.Join(filepath.Dir(base), path))
	}
	candidates = append(candidates, path)

	for _, candidate := range candidates {
		f, err := os.Open(candidate)
		if err == nil {
			return protocompile.SearchResult{Source: f}, nil
		}
	}
	return protocompile.SearchResult{}, fs.ErrNotExist
}
