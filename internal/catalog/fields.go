package catalog

import (
	"reflect"
	"sort"
)

// Role is a semantic field of a product record that may appear under several names.
type Role string

const (
	RoleName        Role = "name"
	RoleDescription Role = "description"
	RoleCategory    Role = "category"
	RoleMaterial    Role = "material"
	RoleSize        Role = "size"
	RoleColor       Role = "color"
	RoleBrand       Role = "brand"
	RoleModel       Role = "model"
	RolePrice       Role = "price"
	RoleImage       Role = "image"
	RoleLink        Role = "link"
)

var roleAliases = map[Role][]string{
	RoleName:        {"nombre", "name", "titulo", "title"},
	RoleDescription: {"descripcion", "description"},
	RoleCategory:    {"categoria", "category"},
	RoleMaterial:    {"material"},
	RoleSize:        {"tamano", "tamaño", "talla", "numero", "size"},
	RoleColor:       {"color"},
	RoleBrand:       {"marca", "brand"},
	RoleModel:       {"modelo", "model"},
	RolePrice:       {"precio", "price"},
	RoleImage:       {"imagen", "image"},
	RoleLink:        {"enlace", "link", "url"},
}

// Aliases returns the field names that carry the role, in lookup priority order.
func (r Role) Aliases() []string {
	return roleAliases[r]
}

// CoreRoles are the descriptive roles that drive generation and fingerprinting.
var CoreRoles = []Role{
	RoleName,
	RoleDescription,
	RoleCategory,
	RoleMaterial,
	RoleSize,
	RoleColor,
	RoleBrand,
	RoleModel,
}

// TagRoles seed the tag list of every result.
var TagRoles = []Role{
	RoleCategory,
	RoleMaterial,
	RoleSize,
	RoleColor,
	RoleBrand,
}

// presentationRoles never influence generated content.
var presentationRoles = []Role{RolePrice, RoleImage, RoleLink}

var (
	coreKeys         = keySet(CoreRoles)
	presentationKeys = keySet(presentationRoles)
	recordType       = reflect.TypeOf(Record{})
)

// Extras returns every field that is neither a core role nor a presentation field, sorted by
// key. Empty values are skipped.
func (r Record) Extras() map[string]string {
	out := make(map[string]string)
	for _, k := range r.keys {
		if _, ok := coreKeys[k]; ok {
			continue
		}
		if _, ok := presentationKeys[k]; ok {
			continue
		}
		if v := r.Value(k); v != "" {
			out[k] = v
		}
	}
	return out
}

// IsPresentationField reports whether key only affects rendering (price, image, link).
func IsPresentationField(key string) bool {
	_, ok := presentationKeys[key]
	return ok
}

func keySet(roles []Role) map[string]struct{} {
	out := make(map[string]struct{})
	for _, r := range roles {
		for _, a := range r.Aliases() {
			out[a] = struct{}{}
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
