package sqlite

const (
	queryCreateRoom = `
		INSERT INTO rooms (id, name, host, max_size, status, created_at, ended_at, recording_url, peak_participants)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	queryEndRoom = `
		UPDATE rooms SET status = ?, ended_at = ?, recording_url = ?
		WHERE id = ?`
	queryUpdatePeak = `UPDATE rooms SET peak_participants = ? WHERE id = ?`
	queryListRooms  = `
		SELECT id, name, host, max_size, status, created_at, ended_at, recording_url, peak_participants
		FROM rooms
		ORDER BY created_at ASC, id ASC`

	queryCreateSession = `
		INSERT INTO participants (id, room_id, "user", joined_at, left_at, camera_on, mic_on)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	queryCloseSession  = `UPDATE participants SET left_at = ? WHERE id = ? AND left_at IS NULL`
	queryUpdateMedia   = `UPDATE participants SET camera_on = ?, mic_on = ? WHERE id = ?`
	queryCountSessions = `SELECT COUNT(*) FROM participants WHERE room_id = ?`
	queryListSessions  = `
		SELECT id, room_id, "user", joined_at, left_at, camera_on, mic_on
		FROM participants
		ORDER BY joined_at ASC, id ASC`
)
