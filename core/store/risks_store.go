package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

type Risk struct {
	RiskID                   string    `json:"riskId"`
	Department               string    `json:"department"`
	RiskType                 string    `json:"riskType"`
	AssetType                string    `json:"assetType"`
	Asset                    string    `json:"asset"`
	RiskDescription          string    `json:"riskDescription"`
	Vulnerability            []string  `json:"vulnerability"`
	Confidentiality          int       `json:"confidentiality"`
	Integrity                int       `json:"integrity"`
	Availability             int       `json:"availability"`
	Probability              int       `json:"probability"`
	RiskScore                int       `json:"riskScore"`
	RiskLevel                string    `json:"riskLevel"`
	TreatmentOption          string    `json:"treatmentOption"`
	LikelihoodAfterTreatment int       `json:"likelihoodAfterTreatment"`
	ImpactAfterTreatment     int       `json:"impactAfterTreatment"`
	ResidualRiskScore        int       `json:"residualRiskScore"`
	ResidualRiskLevel        string    `json:"residualRiskLevel"`
	ControlReference         []string  `json:"controlReference"`
	StartDate                string    `json:"startDate"`
	EndDate                  string    `json:"endDate"`
	NumberOfDays             int       `json:"numberOfDays"`
	Status                   string    `json:"status"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

type RiskTemplate struct {
	ID                       int64     `json:"id"`
	Department               string    `json:"department"`
	RiskType                 string    `json:"riskType"`
	AssetType                string    `json:"assetType"`
	Asset                    string    `json:"asset"`
	RiskDescription          string    `json:"riskDescription"`
	Vulnerability            []string  `json:"vulnerability"`
	Confidentiality          int       `json:"confidentiality"`
	Integrity                int       `json:"integrity"`
	Availability             int       `json:"availability"`
	Probability              int       `json:"probability"`
	TreatmentOption          string    `json:"treatmentOption"`
	LikelihoodAfterTreatment int       `json:"likelihoodAfterTreatment"`
	ImpactAfterTreatment     int       `json:"impactAfterTreatment"`
	ControlReference         []string  `json:"controlReference"`
	StartDate                string    `json:"startDate"`
	EndDate                  string    `json:"endDate"`
	NumberOfDays             int       `json:"numberOfDays"`
	CreatedAt                time.Time `json:"createdAt"`
}

type RisksStore interface {
	// CreateRisk inserts the risk, allocating the next RR-<year>-NNN id in
	// the same transaction when RiskID is empty.
	CreateRisk(ctx context.Context, r *Risk) error
	// SaveRisk upserts by risk id; RiskID must be set by the caller.
	SaveRisk(ctx context.Context, r *Risk) error
	GetRisk(ctx context.Context, riskID string) (*Risk, error)
	// ListRisks returns all risks, or only one department's when the
	// filter is non-empty. Exact name match.
	ListRisks(ctx context.Context, department string) ([]Risk, error)
	DeleteRisk(ctx context.Context, riskID string) error

	ListTemplates(ctx context.Context) ([]RiskTemplate, error)
	GetTemplate(ctx context.Context, id int64) (*RiskTemplate, error)
	CreateTemplate(ctx context.Context, t *RiskTemplate) (int64, error)
	DeleteTemplate(ctx context.Context, id int64) error
}

type risksStore struct {
	db *sql.DB
}

func NewRisksStore(db *sql.DB) RisksStore {
	return &risksStore{db: db}
}

var riskIDPattern = regexp.MustCompile(`^RR-(\d{4})-(\d+)$`)

func (s *risksStore) CreateRisk(ctx context.Context, r *Risk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if r.RiskID == "" {
		riskID, err := nextRiskIDTx(ctx, tx, now.Year())
		if err != nil {
			tx.Rollback()
			return err
		}
		r.RiskID = riskID
	}
	if r.Status == "" {
		r.Status = "Active"
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, q(`
		INSERT INTO risks(risk_id, department, risk_type, asset_type, asset, risk_description, vulnerability,
			confidentiality, integrity, availability, probability, risk_score, risk_level,
			treatment_option, likelihood_after_treatment, impact_after_treatment, residual_risk_score, residual_risk_level,
			control_reference, start_date, end_date, number_of_days, status, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		r.RiskID, r.Department, r.RiskType, r.AssetType, r.Asset, r.RiskDescription, listToJSON(r.Vulnerability),
		r.Confidentiality, r.Integrity, r.Availability, r.Probability, r.RiskScore, r.RiskLevel,
		r.TreatmentOption, r.LikelihoodAfterTreatment, r.ImpactAfterTreatment, r.ResidualRiskScore, r.ResidualRiskLevel,
		listToJSON(r.ControlReference), r.StartDate, r.EndDate, r.NumberOfDays, r.Status, now, now); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// nextRiskIDTx combines the per-year counter with a scan of the ids already
// present, so imported registers with higher suffixes never collide with the
// counter's view of the sequence.
func nextRiskIDTx(ctx context.Context, tx *sql.Tx, year int) (string, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, q(`
		INSERT INTO risk_reg_counters(year, seq)
		VALUES(?,1)
		ON CONFLICT (year)
		DO UPDATE SET seq = risk_reg_counters.seq + 1
		RETURNING seq
	`), year).Scan(&seq); err != nil {
		return "", err
	}
	rows, err := tx.QueryContext(ctx, q(`SELECT risk_id FROM risks WHERE risk_id LIKE ?`), fmt.Sprintf("RR-%d-%%", year))
	if err != nil {
		return "", err
	}
	var scanMax int64
	for rows.Next() {
		var riskID string
		if err := rows.Scan(&riskID); err != nil {
			rows.Close()
			return "", err
		}
		m := riskIDPattern.FindStringSubmatch(riskID)
		if m == nil {
			continue
		}
		if n, err := strconv.ParseInt(m[2], 10, 64); err == nil && n > scanMax {
			scanMax = n
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return "", err
	}
	rows.Close()
	if scanMax+1 > seq {
		seq = scanMax + 1
		if _, err := tx.ExecContext(ctx, q(`UPDATE risk_reg_counters SET seq=? WHERE year=?`), seq, year); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("RR-%d-%03d", year, seq), nil
}

func (s *risksStore) SaveRisk(ctx context.Context, r *Risk) error {
	now := time.Now().UTC()
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = "Active"
	}
	res, err := s.db.ExecContext(ctx, q(`
		UPDATE risks SET department=?, risk_type=?, asset_type=?, asset=?, risk_description=?, vulnerability=?,
			confidentiality=?, integrity=?, availability=?, probability=?, risk_score=?, risk_level=?,
			treatment_option=?, likelihood_after_treatment=?, impact_after_treatment=?, residual_risk_score=?, residual_risk_level=?,
			control_reference=?, start_date=?, end_date=?, number_of_days=?, status=?, updated_at=?
		WHERE risk_id=?`),
		r.Department, r.RiskType, r.AssetType, r.Asset, r.RiskDescription, listToJSON(r.Vulnerability),
		r.Confidentiality, r.Integrity, r.Availability, r.Probability, r.RiskScore, r.RiskLevel,
		r.TreatmentOption, r.LikelihoodAfterTreatment, r.ImpactAfterTreatment, r.ResidualRiskScore, r.ResidualRiskLevel,
		listToJSON(r.ControlReference), r.StartDate, r.EndDate, r.NumberOfDays, r.Status, now, r.RiskID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	return s.CreateRisk(ctx, r)
}

const riskColumns = `risk_id, department, risk_type, asset_type, asset, risk_description, vulnerability,
	confidentiality, integrity, availability, probability, risk_score, risk_level,
	treatment_option, likelihood_after_treatment, impact_after_treatment, residual_risk_score, residual_risk_level,
	control_reference, start_date, end_date, number_of_days, status, created_at, updated_at`

func scanRisk(row interface{ Scan(...any) error }) (*Risk, error) {
	r := Risk{}
	var vuln, ctrlRef string
	err := row.Scan(&r.RiskID, &r.Department, &r.RiskType, &r.AssetType, &r.Asset, &r.RiskDescription, &vuln,
		&r.Confidentiality, &r.Integrity, &r.Availability, &r.Probability, &r.RiskScore, &r.RiskLevel,
		&r.TreatmentOption, &r.LikelihoodAfterTreatment, &r.ImpactAfterTreatment, &r.ResidualRiskScore, &r.ResidualRiskLevel,
		&ctrlRef, &r.StartDate, &r.EndDate, &r.NumberOfDays, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Vulnerability = listFromJSON(vuln)
	r.ControlReference = listFromJSON(ctrlRef)
	return &r, nil
}

func (s *risksStore) GetRisk(ctx context.Context, riskID string) (*Risk, error) {
	return scanRisk(s.db.QueryRowContext(ctx, q(`SELECT `+riskColumns+` FROM risks WHERE risk_id=?`), riskID))
}

func (s *risksStore) ListRisks(ctx context.Context, department string) ([]Risk, error) {
	query := `SELECT ` + riskColumns + ` FROM risks`
	args := []any{}
	if department != "" {
		query += ` WHERE department=?`
		args = append(args, department)
	}
	query += ` ORDER BY risk_id`
	rows, err := s.db.QueryContext(ctx, q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Risk{}
	for rows.Next() {
		r, err := scanRisk(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *r)
	}
	return items, rows.Err()
}

func (s *risksStore) DeleteRisk(ctx context.Context, riskID string) error {
	res, err := s.db.ExecContext(ctx, q(`DELETE FROM risks WHERE risk_id=?`), riskID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

const templateColumns = `id, department, risk_type, asset_type, asset, risk_description, vulnerability,
	confidentiality, integrity, availability, probability, treatment_option,
	likelihood_after_treatment, impact_after_treatment, control_reference, start_date, end_date, number_of_days, created_at`

func scanTemplate(row interface{ Scan(...any) error }) (*RiskTemplate, error) {
	t := RiskTemplate{}
	var vuln, ctrlRef string
	err := row.Scan(&t.ID, &t.Department, &t.RiskType, &t.AssetType, &t.Asset, &t.RiskDescription, &vuln,
		&t.Confidentiality, &t.Integrity, &t.Availability, &t.Probability, &t.TreatmentOption,
		&t.LikelihoodAfterTreatment, &t.ImpactAfterTreatment, &ctrlRef, &t.StartDate, &t.EndDate, &t.NumberOfDays, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Vulnerability = listFromJSON(vuln)
	t.ControlReference = listFromJSON(ctrlRef)
	return &t, nil
}

func (s *risksStore) ListTemplates(ctx context.Context) ([]RiskTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM risk_templates ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []RiskTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	return items, rows.Err()
}

func (s *risksStore) GetTemplate(ctx context.Context, id int64) (*RiskTemplate, error) {
	return scanTemplate(s.db.QueryRowContext(ctx, q(`SELECT `+templateColumns+` FROM risk_templates WHERE id=?`), id))
}

func (s *risksStore) CreateTemplate(ctx context.Context, t *RiskTemplate) (int64, error) {
	now := time.Now().UTC()
	t.CreatedAt = now
	if usePgPlaceholders {
		err := s.db.QueryRowContext(ctx, q(`
			INSERT INTO risk_templates(department, risk_type, asset_type, asset, risk_description, vulnerability,
				confidentiality, integrity, availability, probability, treatment_option,
				likelihood_after_treatment, impact_after_treatment, control_reference, start_date, end_date, number_of_days, created_at)
			VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?) RETURNING id`),
			t.Department, t.RiskType, t.AssetType, t.Asset, t.RiskDescription, listToJSON(t.Vulnerability),
			t.Confidentiality, t.Integrity, t.Availability, t.Probability, t.TreatmentOption,
			t.LikelihoodAfterTreatment, t.ImpactAfterTreatment, listToJSON(t.ControlReference), t.StartDate, t.EndDate, t.NumberOfDays, now).Scan(&t.ID)
		return t.ID, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_templates(department, risk_type, asset_type, asset, risk_description, vulnerability,
			confidentiality, integrity, availability, probability, treatment_option,
			likelihood_after_treatment, impact_after_treatment, control_reference, start_date, end_date, number_of_days, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.Department, t.RiskType, t.AssetType, t.Asset, t.RiskDescription, listToJSON(t.Vulnerability),
		t.Confidentiality, t.Integrity, t.Availability, t.Probability, t.TreatmentOption,
		t.LikelihoodAfterTreatment, t.ImpactAfterTreatment, listToJSON(t.ControlReference), t.StartDate, t.EndDate, t.NumberOfDays, now)
	if err != nil {
		return 0, err
	}
	t.ID, _ = res.LastInsertId()
	return t.ID, nil
}

func (s *risksStore) DeleteTemplate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, q(`DELETE FROM risk_templates WHERE id=?`), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
