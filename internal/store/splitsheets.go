package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"splitsheet/internal/ledger"
	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
)

const sheetColumns = "id, title, reference_number, reference_degraded, work_code, work_code_provisional, status, payment_status, payment_ref, base_price, discount_percentage, final_price, currency, audio_file_name, audio_mime_type, audio_size_bytes, audio_duration_seconds, agreement_date, work_id, upc_ean, notes, download_count, artifact_url, created_by, created_at, updated_at, completed_at"

// ListFilter narrows ListSplitsheets. Zero values match everything.
type ListFilter struct {
	Statuses  []splitsheet.Status
	CreatedBy string
	Limit     int
}

// CreateSplitsheet writes the aggregate with its participants and roles in one
// transaction. Participants must carry a token digest.
func (s *Store) CreateSplitsheet(ctx context.Context, sheet *splitsheet.Splitsheet) error {
	if sheet == nil || sheet.ID == "" {
		return services.Invalid("id", "splitsheet id required")
	}
	now := s.now().UTC()
	if sheet.CreatedAt.IsZero() {
		sheet.CreatedAt = now
	}
	sheet.UpdatedAt = now

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var audioName, audioMime any
		var audioSize, audioDuration any
		if sheet.Audio != nil {
			audioName = nullableString(sheet.Audio.FileName)
			audioMime = nullableString(sheet.Audio.MimeType)
			audioSize = sheet.Audio.SizeBytes
			audioDuration = sheet.Audio.DurationSeconds
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO splitsheets (`+sheetColumns+`)
			VALUES (`+makePlaceholders(27)+`)`,
			sheet.ID, sheet.Title, sheet.ReferenceNumber, boolToInt(sheet.ReferenceDegraded),
			nullableString(sheet.WorkCode), boolToInt(sheet.WorkCodeProvisional),
			string(sheet.Status), string(sheet.PaymentStatus), nullableString(sheet.PaymentRef),
			sheet.Pricing.BasePrice, sheet.Pricing.DiscountPercentage, sheet.Pricing.FinalPrice, nullableString(sheet.Pricing.Currency),
			audioName, audioMime, audioSize, audioDuration,
			nullableString(sheet.AgreementDate), nullableString(sheet.WorkID), nullableString(sheet.UPCEAN), nullableString(sheet.Notes),
			sheet.DownloadCount, nullableString(sheet.ArtifactURL), sheet.CreatedBy,
			formatTime(sheet.CreatedAt), formatTime(sheet.UpdatedAt), nullableTime(sheet.CompletedAt),
		); err != nil {
			return err
		}

		for i, p := range sheet.Participants {
			if p.TokenDigest == "" {
				return services.Invalid(fmt.Sprintf("participants[%d]", i), "token digest required")
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO participants (splitsheet_id, id, position, identity_ref, name, email, address, phone, ipi_number, pro_affiliation, token_digest, has_signed, signature_ref, signed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sheet.ID, p.ID, i, nullableString(p.IdentityRef), p.Name, p.Email,
				nullableString(p.Address), nullableString(p.Phone), nullableString(p.IPINumber), nullableString(p.PROAffiliation),
				p.TokenDigest, boolToInt(p.HasSigned), nullableString(p.SignatureRef), nullableTime(p.SignedAt),
			); err != nil {
				return err
			}
			for j, role := range p.Roles {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO participant_roles (splitsheet_id, participant_id, position, role_type, percentage, entry_id)
					VALUES (?, ?, ?, ?, ?, ?)`,
					sheet.ID, p.ID, j, string(role.Type), role.Percentage, role.EntryID,
				); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if isUniqueViolation(err) {
		return conflict("create_splitsheet", err)
	}
	if errors.Is(err, services.ErrValidation) {
		return err
	}
	if err != nil {
		return fmt.Errorf("create splitsheet: %w", err)
	}
	return nil
}

// GetSplitsheet loads the full aggregate. Totals and the sent-notification
// count are derived from rows on every read.
func (s *Store) GetSplitsheet(ctx context.Context, id string) (*splitsheet.Splitsheet, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+sheetColumns+` FROM splitsheets WHERE id = ?`, id)
	sheet, err := scanSheet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get_splitsheet", fmt.Sprintf("splitsheet %q", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get splitsheet: %w", err)
	}
	if err := s.loadParticipants(ctx, sheet); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM notifications WHERE splitsheet_id = ? AND email_sent = 1`, id,
	).Scan(&sheet.NotificationsSent); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	sheet.Totals = ledger.ComputeTotals(sheet.Participants)
	return sheet, nil
}

// ListSplitsheets returns splitsheets newest first.
func (s *Store) ListSplitsheets(ctx context.Context, filter ListFilter) ([]*splitsheet.Splitsheet, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if filter.CreatedBy != "" {
		clauses = append(clauses, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}
	query := `SELECT id FROM splitsheets`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list splitsheets: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]*splitsheet.Splitsheet, 0, len(ids))
	for _, id := range ids {
		sheet, err := s.GetSplitsheet(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sheet)
	}
	return out, nil
}

// FindByTokenDigest resolves a signing token digest to its participant.
func (s *Store) FindByTokenDigest(ctx context.Context, digest string) (string, string, error) {
	var sheetID, participantID string
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT splitsheet_id, id FROM participants WHERE token_digest = ?`, digest,
	).Scan(&sheetID, &participantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", services.Wrap(services.ErrNotFound, "store", "find_token", "no participant for token", nil)
	}
	if err != nil {
		return "", "", fmt.Errorf("find token: %w", err)
	}
	return sheetID, participantID, nil
}

// MarkSigned records a signature. It reports false when the participant had
// already signed; the first signature is kept.
func (s *Store) MarkSigned(ctx context.Context, splitsheetID, participantID, signatureRef string, at time.Time) (bool, error) {
	res, err := s.execWithRetry(ctx, `
		UPDATE participants SET has_signed = 1, signature_ref = ?, signed_at = ?
		WHERE splitsheet_id = ? AND id = ? AND has_signed = 0`,
		nullableString(signatureRef), formatTime(at), splitsheetID, participantID,
	)
	if err != nil {
		return false, fmt.Errorf("mark signed: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		_ = s.touch(ctx, splitsheetID)
		return true, nil
	}
	var exists int
	if err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM participants WHERE splitsheet_id = ? AND id = ?`, splitsheetID, participantID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("mark signed: %w", err)
	}
	if exists == 0 {
		return false, services.Wrap(services.ErrNotFound, "store", "mark_signed",
			fmt.Sprintf("participant %q on splitsheet %q", participantID, splitsheetID), nil)
	}
	return false, nil
}

// AdvanceStatus moves a splitsheet from one status to the next. It reports
// false when the row was not in from, which happens when another writer got
// there first.
func (s *Store) AdvanceStatus(ctx context.Context, id string, from, to splitsheet.Status) (bool, error) {
	if err := from.Transition(to); err != nil {
		return false, err
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE splitsheets SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), formatTime(s.now()), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("advance status: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdatePayment applies a payment status. A settled payment never regresses;
// repeating the settled value is a no-op.
func (s *Store) UpdatePayment(ctx context.Context, id string, next splitsheet.PaymentStatus, ref string) (splitsheet.PaymentStatus, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return s.updatePaymentTx(ctx, tx, id, next, ref)
	})
	if err != nil {
		return "", paymentError(err)
	}
	return next, nil
}

// ApplyPaymentEvent reserves eventID and applies its payment status in one
// transaction. It reports false, changing nothing, when eventID was already
// recorded.
func (s *Store) ApplyPaymentEvent(ctx context.Context, eventID, id string, next splitsheet.PaymentStatus, ref string) (bool, error) {
	applied := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		applied = false
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM splitsheets WHERE id = ?`, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return services.Wrap(services.ErrNotFound, "store", "apply_payment_event", fmt.Sprintf("splitsheet %q", id), nil)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO payment_events (event_id, splitsheet_id, status, received_at) VALUES (?, ?, ?, ?)`,
			eventID, id, string(next), formatTime(s.now()),
		)
		if isUniqueViolation(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.updatePaymentTx(ctx, tx, id, next, ref); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, paymentError(err)
	}
	return applied, nil
}

func (s *Store) updatePaymentTx(ctx context.Context, tx *sql.Tx, id string, next splitsheet.PaymentStatus, ref string) error {
	var current string
	err := tx.QueryRowContext(ctx, `SELECT payment_status FROM splitsheets WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, "store", "update_payment", fmt.Sprintf("splitsheet %q", id), nil)
	}
	if err != nil {
		return err
	}
	status := splitsheet.PaymentStatus(current)
	if !status.CanBecome(next) {
		return services.Wrap(services.ErrPrecondition, "store", "update_payment",
			fmt.Sprintf("payment already %s", status), nil)
	}
	if status == next {
		return nil
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE splitsheets SET payment_status = ?, payment_ref = COALESCE(?, payment_ref), updated_at = ? WHERE id = ?`,
		string(next), nullableString(ref), formatTime(s.now()), id,
	)
	return err
}

func paymentError(err error) error {
	if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrPrecondition) {
		return err
	}
	return fmt.Errorf("update payment: %w", err)
}

// Complete marks a fully signed, settled splitsheet completed with its
// artifact location. It reports false when the guard did not match.
func (s *Store) Complete(ctx context.Context, id, artifactURL string, at time.Time) (bool, error) {
	res, err := s.execWithRetry(ctx, `
		UPDATE splitsheets SET status = ?, artifact_url = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND payment_status IN (?, ?)`,
		string(splitsheet.StatusCompleted), artifactURL, formatTime(at), formatTime(at),
		id, string(splitsheet.StatusFullySigned), string(splitsheet.PaymentPaid), string(splitsheet.PaymentFree),
	)
	if err != nil {
		return false, fmt.Errorf("complete splitsheet: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// IncrementDownloads bumps the download counter and returns the new value.
func (s *Store) IncrementDownloads(ctx context.Context, id string) (int, error) {
	var count int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE splitsheets SET download_count = download_count + 1 WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return services.Wrap(services.ErrNotFound, "store", "increment_downloads", fmt.Sprintf("splitsheet %q", id), nil)
		}
		return tx.QueryRowContext(ctx, `SELECT download_count FROM splitsheets WHERE id = ?`, id).Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) touch(ctx context.Context, id string) error {
	_, err := s.execWithRetry(ctx, `UPDATE splitsheets SET updated_at = ? WHERE id = ?`, formatTime(s.now()), id)
	return err
}

func (s *Store) loadParticipants(ctx context.Context, sheet *splitsheet.Splitsheet) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity_ref, name, email, address, phone, ipi_number, pro_affiliation, token_digest, has_signed, signature_ref, signed_at
		FROM participants WHERE splitsheet_id = ? ORDER BY position`, sheet.ID)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	for rows.Next() {
		var (
			p                                          splitsheet.Participant
			identity, address, phone, ipi, pro, sigRef sql.NullString
			signed                                     int
			signedAt                                   sql.NullString
		)
		if err := rows.Scan(&p.ID, &identity, &p.Name, &p.Email, &address, &phone, &ipi, &pro,
			&p.TokenDigest, &signed, &sigRef, &signedAt); err != nil {
			return err
		}
		p.IdentityRef = identity.String
		p.Address = address.String
		p.Phone = phone.String
		p.IPINumber = ipi.String
		p.PROAffiliation = pro.String
		p.HasSigned = signed != 0
		p.SignatureRef = sigRef.String
		p.SignedAt = parseNullTime(signedAt)
		index[p.ID] = len(sheet.Participants)
		sheet.Participants = append(sheet.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	roleRows, err := s.db.QueryContext(ctx, `
		SELECT participant_id, role_type, percentage, entry_id
		FROM participant_roles WHERE splitsheet_id = ? ORDER BY participant_id, position`, sheet.ID)
	if err != nil {
		return fmt.Errorf("load roles: %w", err)
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var (
			participantID, roleType string
			role                    splitsheet.Role
		)
		if err := roleRows.Scan(&participantID, &roleType, &role.Percentage, &role.EntryID); err != nil {
			return err
		}
		role.Type = splitsheet.RoleType(roleType)
		if i, ok := index[participantID]; ok {
			sheet.Participants[i].Roles = append(sheet.Participants[i].Roles, role)
		}
	}
	return roleRows.Err()
}

func scanSheet(scanner interface{ Scan(dest ...any) error }) (*splitsheet.Splitsheet, error) {
	var (
		sheet                                   splitsheet.Splitsheet
		refDegraded, provisional                int
		workCode, paymentRef, currency          sql.NullString
		audioName, audioMime                    sql.NullString
		audioSize                               sql.NullInt64
		audioDuration                           sql.NullFloat64
		agreementDate, workID, upcEAN, notes    sql.NullString
		artifactURL                             sql.NullString
		status, payment, createdRaw, updatedRaw string
		completedRaw                            sql.NullString
	)
	if err := scanner.Scan(
		&sheet.ID,
		&sheet.Title,
		&sheet.ReferenceNumber,
		&refDegraded,
		&workCode,
		&provisional,
		&status,
		&payment,
		&paymentRef,
		&sheet.Pricing.BasePrice,
		&sheet.Pricing.DiscountPercentage,
		&sheet.Pricing.FinalPrice,
		&currency,
		&audioName,
		&audioMime,
		&audioSize,
		&audioDuration,
		&agreementDate,
		&workID,
		&upcEAN,
		&notes,
		&sheet.DownloadCount,
		&artifactURL,
		&sheet.CreatedBy,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	sheet.ReferenceDegraded = refDegraded != 0
	sheet.WorkCode = workCode.String
	sheet.WorkCodeProvisional = provisional != 0
	sheet.Status = splitsheet.Status(status)
	sheet.PaymentStatus = splitsheet.PaymentStatus(payment)
	sheet.PaymentRef = paymentRef.String
	sheet.Pricing.Currency = currency.String
	if audioName.Valid {
		sheet.Audio = &splitsheet.AudioFile{
			FileName:        audioName.String,
			MimeType:        audioMime.String,
			SizeBytes:       audioSize.Int64,
			DurationSeconds: audioDuration.Float64,
		}
	}
	sheet.AgreementDate = agreementDate.String
	sheet.WorkID = workID.String
	sheet.UPCEAN = upcEAN.String
	sheet.Notes = notes.String
	sheet.ArtifactURL = artifactURL.String
	if created, err := parseTimeString(createdRaw); err == nil {
		sheet.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		sheet.UpdatedAt = updated
	}
	sheet.CompletedAt = parseNullTime(completedRaw)
	return &sheet, nil
}
