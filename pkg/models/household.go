package models

import "time"

type Household struct {
	ID                       string     `db:"id" json:"id"`
	UnicefID                 string     `db:"unicef_id" json:"unicef_id"`
	BusinessAreaID           string     `db:"business_area_id" json:"business_area_id"`
	RegistrationDataImportID *string    `db:"registration_data_import_id" json:"registration_data_import_id,omitempty"`
	HeadOfHouseholdID        *string    `db:"head_of_household_id" json:"head_of_household_id,omitempty"`
	Size                     *int       `db:"size" json:"size,omitempty"`
	Address                  string     `db:"address" json:"address"`
	Village                  string     `db:"village" json:"village"`
	ZipCode                  *string    `db:"zip_code" json:"zip_code,omitempty"`
	Country                  *string    `db:"country" json:"country,omitempty"`
	CountryOrigin            *string    `db:"country_origin" json:"country_origin,omitempty"`
	Admin1                   *string    `db:"admin1" json:"admin1,omitempty"`
	Admin2                   *string    `db:"admin2" json:"admin2,omitempty"`
	Admin3                   *string    `db:"admin3" json:"admin3,omitempty"`
	Admin4                   *string    `db:"admin4" json:"admin4,omitempty"`
	ResidenceStatus          string     `db:"residence_status" json:"residence_status"`
	CollectIndividualData    string     `db:"collect_individual_data" json:"collect_individual_data"`
	Consent                  *bool      `db:"consent" json:"consent,omitempty"`
	ConsentSharing           JSON       `db:"consent_sharing" json:"consent_sharing,omitempty"`
	FemaleAgeGroup0To5       *int       `db:"female_age_group_0_5_count" json:"female_age_group_0_5_count,omitempty"`
	FemaleAgeGroup6To11      *int       `db:"female_age_group_6_11_count" json:"female_age_group_6_11_count,omitempty"`
	FemaleAgeGroup12To17     *int       `db:"female_age_group_12_17_count" json:"female_age_group_12_17_count,omitempty"`
	FemaleAgeGroup18To59     *int       `db:"female_age_group_18_59_count" json:"female_age_group_18_59_count,omitempty"`
	FemaleAgeGroup60         *int       `db:"female_age_group_60_count" json:"female_age_group_60_count,omitempty"`
	MaleAgeGroup0To5         *int       `db:"male_age_group_0_5_count" json:"male_age_group_0_5_count,omitempty"`
	MaleAgeGroup6To11        *int       `db:"male_age_group_6_11_count" json:"male_age_group_6_11_count,omitempty"`
	MaleAgeGroup12To17       *int       `db:"male_age_group_12_17_count" json:"male_age_group_12_17_count,omitempty"`
	MaleAgeGroup18To59       *int       `db:"male_age_group_18_59_count" json:"male_age_group_18_59_count,omitempty"`
	MaleAgeGroup60           *int       `db:"male_age_group_60_count" json:"male_age_group_60_count,omitempty"`
	ChildrenCount            *int       `db:"children_count" json:"children_count,omitempty"`
	PregnantCount            *int       `db:"pregnant_count" json:"pregnant_count,omitempty"`
	Returnee                 *bool      `db:"returnee" json:"returnee,omitempty"`
	FlexFields               JSON       `db:"flex_fields" json:"flex_fields,omitempty"`
	Withdrawn                bool       `db:"withdrawn" json:"withdrawn"`
	WithdrawnDate            *time.Time `db:"withdrawn_date" json:"withdrawn_date,omitempty"`
	FirstRegistrationDate    time.Time  `db:"first_registration_date" json:"first_registration_date"`
	LastRegistrationDate     time.Time  `db:"last_registration_date" json:"last_registration_date"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
	Lineage
}

func (h *Household) GetID() string { return h.ID }

type Individual struct {
	ID                         string     `db:"id" json:"id"`
	UnicefID                   string     `db:"unicef_id" json:"unicef_id"`
	BusinessAreaID             string     `db:"business_area_id" json:"business_area_id"`
	HouseholdID                *string    `db:"household_id" json:"household_id,omitempty"`
	RegistrationDataImportID   *string    `db:"registration_data_import_id" json:"registration_data_import_id,omitempty"`
	FullName                   string     `db:"full_name" json:"full_name"`
	GivenName                  string     `db:"given_name" json:"given_name"`
	MiddleName                 string     `db:"middle_name" json:"middle_name"`
	FamilyName                 string     `db:"family_name" json:"family_name"`
	Sex                        string     `db:"sex" json:"sex"`
	BirthDate                  time.Time  `db:"birth_date" json:"birth_date"`
	EstimatedBirthDate         bool       `db:"estimated_birth_date" json:"estimated_birth_date"`
	Relationship               string     `db:"relationship" json:"relationship"`
	MaritalStatus              string     `db:"marital_status" json:"marital_status"`
	PhoneNo                    string     `db:"phone_no" json:"phone_no"`
	PhoneNoAlternative         string     `db:"phone_no_alternative" json:"phone_no_alternative"`
	Email                      string     `db:"email" json:"email"`
	Disability                 string     `db:"disability" json:"disability"`
	WorkStatus                 string     `db:"work_status" json:"work_status"`
	PregnantStatus             *bool      `db:"pregnant" json:"pregnant,omitempty"`
	FlexFields                 JSON       `db:"flex_fields" json:"flex_fields,omitempty"`
	Withdrawn                  bool       `db:"withdrawn" json:"withdrawn"`
	WithdrawnDate              *time.Time `db:"withdrawn_date" json:"withdrawn_date,omitempty"`
	Duplicate                  bool       `db:"duplicate" json:"duplicate"`
	DeduplicationGoldenStatus  string     `db:"deduplication_golden_record_status" json:"deduplication_golden_record_status"`
	SanctionListPossibleMatch  bool       `db:"sanction_list_possible_match" json:"sanction_list_possible_match"`
	SanctionListConfirmedMatch bool       `db:"sanction_list_confirmed_match" json:"sanction_list_confirmed_match"`
	FirstRegistrationDate      time.Time  `db:"first_registration_date" json:"first_registration_date"`
	LastRegistrationDate       time.Time  `db:"last_registration_date" json:"last_registration_date"`
	CreatedAt                  time.Time  `db:"created_at" json:"created_at"`
	Lineage
}

func (i *Individual) GetID() string { return i.ID }

type Role string

const (
	RolePrimary   Role = "PRIMARY"
	RoleAlternate Role = "ALTERNATE"
	RoleNoRole    Role = "NO_ROLE"
)

type IndividualRoleInHousehold struct {
	ID           string    `db:"id" json:"id"`
	HouseholdID  string    `db:"household_id" json:"household_id"`
	IndividualID string    `db:"individual_id" json:"individual_id"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	Lineage
}

func (r *IndividualRoleInHousehold) GetID() string { return r.ID }

type Document struct {
	ID             string     `db:"id" json:"id"`
	IndividualID   string     `db:"individual_id" json:"individual_id"`
	DocumentNumber string     `db:"document_number" json:"document_number"`
	TypeKey        string     `db:"type_key" json:"type_key"`
	Country        string     `db:"country" json:"country"`
	Status         string     `db:"status" json:"status"`
	Photo          string     `db:"photo" json:"photo"`
	Cleared        bool       `db:"cleared" json:"cleared"`
	IssuanceDate   *time.Time `db:"issuance_date" json:"issuance_date,omitempty"`
	ExpiryDate     *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	Lineage
}

func (d *Document) GetID() string { return d.ID }

type IndividualIdentity struct {
	ID           string    `db:"id" json:"id"`
	IndividualID string    `db:"individual_id" json:"individual_id"`
	Number       string    `db:"number" json:"number"`
	Partner      string    `db:"partner" json:"partner"`
	Country      string    `db:"country" json:"country"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	Lineage
}

func (i *IndividualIdentity) GetID() string { return i.ID }

type BankAccountInfo struct {
	ID                string    `db:"id" json:"id"`
	IndividualID      string    `db:"individual_id" json:"individual_id"`
	BankName          string    `db:"bank_name" json:"bank_name"`
	BankAccountNumber string    `db:"bank_account_number" json:"bank_account_number"`
	BankBranchName    string    `db:"bank_branch_name" json:"bank_branch_name"`
	AccountHolderName string    `db:"account_holder_name" json:"account_holder_name"`
	DebitCardNumber   string    `db:"debit_card_number" json:"debit_card_number"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	Lineage
}

func (b *BankAccountInfo) GetID() string { return b.ID }
