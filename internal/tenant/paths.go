// Package tenant reúne o endereçamento hierárquico dos dados de um tenant,
// a validação de posse e a remoção em cascata.
package tenant

import "github.com/planejafacil/api/internal/docstore"

// Nomes das coleções persistidas.
const (
	UsersCollection         = "users"
	ChildUsersCollection    = "child_users"
	TemplatesCollection     = "templates"
	ResourceTypesCollection = "resourcesTypes"
	ResourcesCollection     = "resources"
	BlocksCollection        = "blocks"
	PhasesCollection        = "phases"
	OpsCollection           = "ops"
)

func UserPath(uid string) string { return docstore.Join(UsersCollection, uid) }

func ChildUsers(mainUID string) string {
	return docstore.Join(UserPath(mainUID), ChildUsersCollection)
}

func ChildUserPath(mainUID, uid string) string { return docstore.Join(ChildUsers(mainUID), uid) }

func Templates(mainUID string) string {
	return docstore.Join(UserPath(mainUID), TemplatesCollection)
}

func TemplatePath(mainUID, id string) string { return docstore.Join(Templates(mainUID), id) }

func ResourceTypes(mainUID string) string {
	return docstore.Join(UserPath(mainUID), ResourceTypesCollection)
}

func ResourceTypePath(mainUID, id string) string { return docstore.Join(ResourceTypes(mainUID), id) }

func Resources(mainUID string) string {
	return docstore.Join(UserPath(mainUID), ResourcesCollection)
}

func ResourcePath(mainUID, id string) string { return docstore.Join(Resources(mainUID), id) }

func Blocks(mainUID string) string {
	return docstore.Join(UserPath(mainUID), BlocksCollection)
}

func BlockPath(mainUID, id string) string { return docstore.Join(Blocks(mainUID), id) }

func Phases(mainUID, blockID string) string {
	return docstore.Join(BlockPath(mainUID, blockID), PhasesCollection)
}

func PhasePath(mainUID, blockID, id string) string {
	return docstore.Join(Phases(mainUID, blockID), id)
}

func Ops(mainUID string) string {
	return docstore.Join(UserPath(mainUID), OpsCollection)
}

func OpPath(mainUID, id string) string { return docstore.Join(Ops(mainUID), id) }
