package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/OfirPatish/Chattrix-sub000/internal/models"
)

// PostgresStore is the durable persistence gateway. Chats store their
// participant pair in canonical order so the (a,b)/(b,a) lookups hit
// the same row.
type PostgresStore struct {
	*sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresStore{db}, nil
}

// SupportsTransactions reports true: CreateMessage runs in a single tx
func (db *PostgresStore) SupportsTransactions() bool {
	return true
}

func (db *PostgresStore) CreateUser(username, email, passwordHash string) (*models.User, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM users WHERE username = $1 OR email = $2",
		username, email).Scan(&count)
	if err != nil {
		return nil, err
	}

	if count > 0 {
		return nil, ErrUserAlreadyExists
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		LastSeen:     time.Now(),
		CreatedAt:    time.Now(),
	}

	_, err = db.Exec(
		"INSERT INTO users (id, username, email, password_hash, is_online, last_seen, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		user.ID, user.Username, user.Email, user.PasswordHash, user.IsOnline, user.LastSeen, user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return user, nil
}

const userColumns = `id, username, email, password_hash, COALESCE(avatar_url, ''), is_online, last_seen, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.AvatarURL, &user.IsOnline, &user.LastSeen, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (db *PostgresStore) GetUserByEmail(email string) (*models.User, error) {
	return scanUser(db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = $1", email))
}

func (db *PostgresStore) GetUserByID(id uuid.UUID) (*models.User, error) {
	return scanUser(db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

func (db *PostgresStore) GetAllUsers(excludeUserID uuid.UUID) ([]*models.User, error) {
	rows, err := db.Query("SELECT "+userColumns+" FROM users WHERE id != $1 ORDER BY username", excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.AvatarURL, &user.IsOnline, &user.LastSeen, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (db *PostgresStore) UpdateProfile(userID uuid.UUID, update models.ProfileUpdate) (*models.User, error) {
	if update.Username != "" || update.Email != "" {
		var count int
		err := db.QueryRow(
			"SELECT COUNT(*) FROM users WHERE (username = $1 OR email = $2) AND id != $3",
			update.Username, update.Email, userID).Scan(&count)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrUserAlreadyExists
		}
	}

	result, err := db.Exec(`
		UPDATE users SET
			username = COALESCE(NULLIF($1, ''), username),
			email = COALESCE(NULLIF($2, ''), email),
			avatar_url = COALESCE(NULLIF($3, ''), avatar_url)
		WHERE id = $4`,
		update.Username, update.Email, update.AvatarURL, userID)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	return db.GetUserByID(userID)
}

func (db *PostgresStore) SetOnline(userID uuid.UUID, online bool) error {
	result, err := db.Exec("UPDATE users SET is_online = $1, last_seen = $2 WHERE id = $3",
		online, time.Now(), userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// orderedPair returns the participant pair in canonical order
func orderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

func (db *PostgresStore) GetOrCreateChat(userA, userB uuid.UUID) (*models.Chat, error) {
	first, second := orderedPair(userA, userB)

	// ON CONFLICT DO NOTHING keeps concurrent first-contact races from
	// creating a duplicate pair
	_, err := db.Exec(`
		INSERT INTO chats (id, participant_a, participant_b, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (participant_a, participant_b) DO NOTHING`,
		uuid.New(), first, second, time.Now())
	if err != nil {
		return nil, err
	}

	return db.getChat("SELECT "+chatColumns+" FROM chats WHERE participant_a = $1 AND participant_b = $2", first, second)
}

const chatColumns = `id, participant_a, participant_b, last_message_id, created_at, updated_at`

func (db *PostgresStore) getChat(query string, args ...interface{}) (*models.Chat, error) {
	chat := &models.Chat{}
	var a, b uuid.UUID
	var lastMessageID uuid.NullUUID

	err := db.QueryRow(query, args...).Scan(&chat.ID, &a, &b, &lastMessageID, &chat.CreatedAt, &chat.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}

	chat.Participants = []uuid.UUID{a, b}
	if lastMessageID.Valid {
		chat.LastMessageID = &lastMessageID.UUID
	}
	return chat, nil
}

func (db *PostgresStore) GetChatByID(chatID uuid.UUID) (*models.Chat, error) {
	return db.getChat("SELECT "+chatColumns+" FROM chats WHERE id = $1", chatID)
}

func (db *PostgresStore) GetChatsForUser(userID uuid.UUID, limit, offset int) ([]*models.Chat, error) {
	rows, err := db.Query(`
		SELECT `+chatColumns+` FROM chats
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*models.Chat
	for rows.Next() {
		chat := &models.Chat{}
		var a, b uuid.UUID
		var lastMessageID uuid.NullUUID

		if err := rows.Scan(&chat.ID, &a, &b, &lastMessageID, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, err
		}
		chat.Participants = []uuid.UUID{a, b}
		if lastMessageID.Valid {
			chat.LastMessageID = &lastMessageID.UUID
		}
		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

func (db *PostgresStore) ChatIDsForUser(userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := db.Query("SELECT id FROM chats WHERE participant_a = $1 OR participant_b = $1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *PostgresStore) IsParticipant(chatID, userID uuid.UUID) (bool, error) {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM chats WHERE id = $1 AND (participant_a = $2 OR participant_b = $2)",
		chatID, userID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (db *PostgresStore) CreateMessage(senderID, chatID uuid.UUID, content, messageType, imageURL string) (*models.Message, error) {
	message := &models.Message{
		ID:          uuid.New(),
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     content,
		MessageType: messageType,
		ImageURL:    imageURL,
		ReadBy:      []models.ReadReceipt{},
		CreatedAt:   time.Now(),
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO messages (id, chat_id, sender_id, content, message_type, image_url, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		message.ID, message.ChatID, message.SenderID, message.Content, message.MessageType, message.ImageURL, message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	result, err := tx.Exec("UPDATE chats SET last_message_id = $1, updated_at = $2 WHERE id = $3",
		message.ID, message.CreatedAt, chatID)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ErrChatNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return message, nil
}

func (db *PostgresStore) GetMessageByID(messageID uuid.UUID) (*models.Message, error) {
	message := &models.Message{}
	err := db.QueryRow(`
		SELECT id, chat_id, sender_id, content, message_type, COALESCE(image_url, ''), created_at
		FROM messages WHERE id = $1`, messageID).Scan(
		&message.ID, &message.ChatID, &message.SenderID, &message.Content,
		&message.MessageType, &message.ImageURL, &message.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := db.loadReceipts(message); err != nil {
		return nil, err
	}

	return message, nil
}

func (db *PostgresStore) loadReceipts(message *models.Message) error {
	rows, err := db.Query("SELECT user_id, read_at FROM message_reads WHERE message_id = $1 ORDER BY read_at", message.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	message.ReadBy = []models.ReadReceipt{}
	for rows.Next() {
		var receipt models.ReadReceipt
		if err := rows.Scan(&receipt.UserID, &receipt.ReadAt); err != nil {
			return err
		}
		message.ReadBy = append(message.ReadBy, receipt)
	}

	return rows.Err()
}

func (db *PostgresStore) GetChatMessages(chatID uuid.UUID, limit, offset int) ([]*models.Message, error) {
	rows, err := db.Query(`
		SELECT id, chat_id, sender_id, content, message_type, COALESCE(image_url, ''), created_at
		FROM messages WHERE chat_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3`,
		chatID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		message := &models.Message{}
		if err := rows.Scan(&message.ID, &message.ChatID, &message.SenderID, &message.Content,
			&message.MessageType, &message.ImageURL, &message.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, message := range messages {
		if err := db.loadReceipts(message); err != nil {
			return nil, err
		}
	}

	return messages, nil
}

func (db *PostgresStore) MarkMessageRead(messageID, userID uuid.UUID) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM messages WHERE id = $1", messageID).Scan(&count)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrMessageNotFound
	}

	// ON CONFLICT DO NOTHING makes the append idempotent per (message, user)
	result, err := db.Exec(`
		INSERT INTO message_reads (message_id, user_id, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO NOTHING`,
		messageID, userID, time.Now())
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}
