package postgres

const (
	queryCreateRoom = `
		INSERT INTO rooms (id, name, host, max_size, status, created_at, ended_at, recording_url, peak_participants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	queryEndRoom = `
		UPDATE rooms SET status = $1, ended_at = $2, recording_url = $3
		WHERE id = $4`
	queryUpdatePeak = `UPDATE rooms SET peak_participants = $1 WHERE id = $2`
	queryListRooms  = `
		SELECT id, name, host, max_size, status, created_at, ended_at, recording_url, peak_participants
		FROM rooms
		ORDER BY created_at ASC, id ASC`

	queryCreateSession = `
		INSERT INTO participants (id, room_id, "user", joined_at, left_at, camera_on, mic_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	queryCloseSession  = `UPDATE participants SET left_at = $1 WHERE id = $2 AND left_at IS NULL`
	queryUpdateMedia   = `UPDATE participants SET camera_on = $1, mic_on = $2 WHERE id = $3`
	queryCountSessions = `SELECT COUNT(*) FROM participants WHERE room_id = $1`
	queryListSessions  = `
		SELECT id, room_id, "user", joined_at, left_at, camera_on, mic_on
		FROM participants
		ORDER BY joined_at ASC, id ASC`
)
