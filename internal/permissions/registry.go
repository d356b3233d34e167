package permissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/charlesng35/erprbac/pkg/validator"
)

// Permission describes a catalog entry registered at start-up.
type Permission struct {
	Code        string
	Module      string
	Resource    string
	Action      string
	Description string
}

// ID returns the stable identifier persisted for the permission.
func (p *Permission) ID() string {
	return IDForCode(p.Code)
}

type permissionRegistry struct {
	mu          sync.RWMutex
	permissions map[string]*Permission
}

var globalRegistry = &permissionRegistry{
	permissions: make(map[string]*Permission),
}

// catalogNamespace seeds UUIDv5 identifiers so a code always maps to the same id.
var catalogNamespace = uuid.MustParse("6f1c0c1e-4b8a-5d27-9a53-0d8f4f1e2b7a")

var (
	errNilPermission = errors.New("permission: nil definition")
	errInvalidCode   = errors.New("permission: code must be <module>.<resource>.<action>")
	errDuplicateCode = errors.New("permission: already registered")
)

// IDForCode derives the persisted identifier of a permission code.
func IDForCode(code string) string {
	return uuid.NewSHA1(catalogNamespace, []byte(strings.TrimSpace(code))).String()
}

// ParseCode splits a permission code into module, resource and action.
func ParseCode(code string) (module, resource, action string, err error) {
	code = strings.TrimSpace(code)
	if !validator.IsPermissionCode(code) {
		return "", "", "", fmt.Errorf("%w: %q", errInvalidCode, code)
	}
	parts := strings.Split(code, ".")
	return parts[0], parts[1], parts[2], nil
}

// Register adds a permission definition to the global registry. Module, resource and
// action are always derived from the code.
func Register(perm *Permission) error {
	if perm == nil {
		return errNilPermission
	}

	code := strings.TrimSpace(perm.Code)
	module, resource, action, err := ParseCode(code)
	if err != nil {
		return err
	}

	def := &Permission{
		Code:        code,
		Module:      module,
		Resource:    resource,
		Action:      action,
		Description: strings.TrimSpace(perm.Description),
	}

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if _, exists := globalRegistry.permissions[code]; exists {
		return fmt.Errorf("%w: %s", errDuplicateCode, code)
	}

	globalRegistry.permissions[code] = def
	return nil
}

// MustRegister panics when registration fails. Used by package init catalogs.
func MustRegister(perms ...*Permission) {
	for _, perm := range perms {
		if err := Register(perm); err != nil {
			panic(err)
		}
	}
}

// Get returns a copy of the permission definition when registered.
func Get(code string) (*Permission, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	perm, ok := globalRegistry.permissions[code]
	if !ok {
		return nil, false
	}
	cp := *perm
	return &cp, true
}

// GetAll returns every registered permission ordered by module, resource, action.
func GetAll() []*Permission {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	out := make([]*Permission, 0, len(globalRegistry.permissions))
	for _, perm := range globalRegistry.permissions {
		cp := *perm
		out = append(out, &cp)
	}
	sortPermissions(out)
	return out
}

// GetByModule gathers permissions registered under the specified module.
func GetByModule(module string) []*Permission {
	module = strings.TrimSpace(module)

	var perms []*Permission
	for _, perm := range GetAll() {
		if perm.Module == module {
			perms = append(perms, perm)
		}
	}
	return perms
}

// Modules lists the distinct registered modules in sorted order.
func Modules() []string {
	seen := make(map[string]struct{})
	var modules []string
	for _, perm := range GetAll() {
		if _, ok := seen[perm.Module]; ok {
			continue
		}
		seen[perm.Module] = struct{}{}
		modules = append(modules, perm.Module)
	}
	return modules
}

func sortPermissions(perms []*Permission) {
	sort.Slice(perms, func(i, j int) bool {
		a, b := perms[i], perms[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Resource != b.Resource {
			return a.Resource < b.Resource
		}
		return a.Action < b.Action
	})
}

// snapshot and restore let tests mutate the registry without leaking state.
func snapshot() map[string]*Permission {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	out := make(map[string]*Permission, len(globalRegistry.permissions))
	for code, perm := range globalRegistry.permissions {
		out[code] = perm
	}
	return out
}

func restore(perms map[string]*Permission) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.permissions = perms
}
