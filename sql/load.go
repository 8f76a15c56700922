package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed conversations.sql
var conversationsSQL string

//go:embed relationships.sql
var relationshipsSQL string

// Function lists for verification
var ConversationsFunctions = []string{
	"init_conversations",
	"insert_conversation",
	"select_conversation",
	"select_conversation_summary",
	"select_conversation_embedding",
	"update_conversation_embedding",
	"select_conversations_without_embedding",
	"search_conversations_lexical",
	"search_conversations_vector",
	"mark_relationships_built",
	"delete_conversation",
}

var RelationshipsFunctions = []string{
	"init_relationship_edges",
	"upsert_relationship_edge",
	"select_relationship_edge",
	"select_edges_from_conversation",
	"select_edges_to_conversation",
	"select_relationship_type_counts",
	"select_conversations_pending_relationships",
	"delete_relationship_edge",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadConversationsSql loads conversation-related SQL functions
func LoadConversationsSql(db *sql.DB, force bool) error {
	return loadSql(db, "conversations", conversationsSQL, ConversationsFunctions, force)
}

// LoadRelationshipsSql loads relationship-edge-related SQL functions
func LoadRelationshipsSql(db *sql.DB, force bool) error {
	return loadSql(db, "relationships", relationshipsSQL, RelationshipsFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadConversationsSql(db, force); err != nil {
		return err
	}

	if err := LoadRelationshipsSql(db, force); err != nil {
		return err
	}

	return nil
}

func loadSql(db *sql.DB, name string, script string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
