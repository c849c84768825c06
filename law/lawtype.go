package law

import (
	"strings"
)

// Type is the closed enumeration of law types. Unknown input maps to TypeOther.
type Type string

const (
	TypeDecretoLei                   Type = "DECRETO_LEI"
	TypeLei                          Type = "LEI"
	TypeLeiConstitucional            Type = "LEI_CONSTITUCIONAL"
	TypeLeiOrganica                  Type = "LEI_ORGANICA"
	TypeDecreto                      Type = "DECRETO"
	TypeDecretoLegislativoRegional   Type = "DECRETO_LEGISLATIVO_REGIONAL"
	TypeDecretoRegional              Type = "DECRETO_REGIONAL"
	TypeDecretoRegulamentar          Type = "DECRETO_REGULAMENTAR"
	TypeDecretoRegulamentarRegional  Type = "DECRETO_REGULAMENTAR_REGIONAL"
	TypeDecretoGoverno               Type = "DECRETO_GOVERNO"
	TypeDecretoPR                    Type = "DECRETO_PR"
	TypeDecretoAprovacaoConstituicao Type = "DECRETO_APROVACAO_CONSTITUICAO"
	TypePortaria                     Type = "PORTARIA"
	TypeDespacho                     Type = "DESPACHO"
	TypeDespachoConjunto             Type = "DESPACHO_CONJUNTO"
	TypeDespachoNormativo            Type = "DESPACHO_NORMATIVO"
	TypeAviso                        Type = "AVISO"
	TypeAvisoBP                      Type = "AVISO_BP"
	TypeEdital                       Type = "EDITAL"
	TypeAlvara                       Type = "ALVARA"
	TypeResolucao                    Type = "RESOLUCAO"
	TypeResolucaoAR                  Type = "RESOLUCAO_AR"
	TypeResolucaoCM                  Type = "RESOLUCAO_CM"
	TypeAcordao                      Type = "ACORDAO"
	TypeAcordaoTC                    Type = "ACORDAO_TC"
	TypeAcordaoSTJ                   Type = "ACORDAO_STJ"
	TypeAcordaoSTA                   Type = "ACORDAO_STA"
	TypeAcordaoTContas               Type = "ACORDAO_T_CONTAS"
	TypeAcordaoDoutrinario           Type = "ACORDAO_DOUTRINARIO"
	TypeAssento                      Type = "ASSENTO"
	TypeConstitution                 Type = "CONSTITUTION"
	TypeCartaConstitucional          Type = "CARTA_CONSTITUCIONAL"
	TypeConstitutionalRevision       Type = "CONSTITUTIONAL_REVISION"
	TypeTratado                      Type = "TRATADO"
	TypeConvencao                    Type = "CONVENCAO"
	TypeAcordo                       Type = "ACORDO"
	TypeProtocolo                    Type = "PROTOCOLO"
	TypeRegulamento                  Type = "REGULAMENTO"
	TypeRegimento                    Type = "REGIMENTO"
	TypeInstrucao                    Type = "INSTRUCAO"
	TypeCircular                     Type = "CIRCULAR"
	TypeDeliberacao                  Type = "DELIBERACAO"
	TypeDecisao                      Type = "DECISAO"
	TypeDeclaracao                   Type = "DECLARACAO"
	TypeDeclaracaoRetificacao        Type = "DECLARACAO_RETIFICACAO"
	TypeErrata                       Type = "ERRATA"
	TypeComunicacao                  Type = "COMUNICACAO"
	TypeAnuncio                      Type = "ANUNCIO"
	TypeMocao                        Type = "MOCAO"
	TypeMocaoConfianca               Type = "MOCAO_CONFIANCA"
	TypeMocaoCensura                 Type = "MOCAO_CENSURA"
	TypeParecer                      Type = "PARECER"
	TypePrograma                     Type = "PROGRAMA"
	TypeCartaAdesao                  Type = "CARTA_ADESAO"
	TypeCartaRatificacao             Type = "CARTA_RATIFICACAO"
	TypeContrato                     Type = "CONTRATO"
	TypeAditamento                   Type = "ADITAMENTO"
	TypeAlteracao                    Type = "ALTERACAO"
	TypeLista                        Type = "LISTA"
	TypeMapa                         Type = "MAPA"
	TypeMapaOficial                  Type = "MAPA_OFICIAL"
	TypeOther                        Type = "OTHER"
)

// typeNames maps free-text law type names to the enumeration. Keys are
// matched through typeKey, so case, accents, hyphens and repeated spaces
// do not matter.
var typeNames = map[string]Type{
	"Decreto-Lei":                                TypeDecretoLei,
	"Lei":                                        TypeLei,
	"Lei Constitucional":                         TypeLeiConstitucional,
	"Lei Orgânica":                               TypeLeiOrganica,
	"Decreto":                                    TypeDecreto,
	"Decreto Legislativo Regional":               TypeDecretoLegislativoRegional,
	"Decreto Regional":                           TypeDecretoRegional,
	"Decreto Regulamentar":                       TypeDecretoRegulamentar,
	"Decreto Regulamentar Regional":              TypeDecretoRegulamentarRegional,
	"Decreto do Governo":                         TypeDecretoGoverno,
	"Decreto do Presidente da República":         TypeDecretoPR,
	"Decreto de Aprovação da Constituição":       TypeDecretoAprovacaoConstituicao,
	"Portaria":                                   TypePortaria,
	"Despacho":                                   TypeDespacho,
	"Despacho Conjunto":                          TypeDespachoConjunto,
	"Despacho Normativo":                         TypeDespachoNormativo,
	"Aviso":                                      TypeAviso,
	"Aviso do Banco de Portugal":                 TypeAvisoBP,
	"Edital":                                     TypeEdital,
	"Alvará":                                     TypeAlvara,
	"Resolução":                                  TypeResolucao,
	"Resolução da Assembleia da República":       TypeResolucaoAR,
	"Resolução do Conselho de Ministros":         TypeResolucaoCM,
	"Acórdão":                                    TypeAcordao,
	"Acórdão do Tribunal Constitucional":         TypeAcordaoTC,
	"Acórdão do Supremo Tribunal de Justiça":     TypeAcordaoSTJ,
	"Acórdão do Supremo Tribunal Administrativo": TypeAcordaoSTA,
	"Acórdão do Tribunal de Contas":              TypeAcordaoTContas,
	"Acórdão doutrinário":                        TypeAcordaoDoutrinario,
	"Assento":                                    TypeAssento,
	"Constituição":                               TypeConstitution,
	"Constituição da República Portuguesa":       TypeConstitution,
	"Carta Constitucional":                       TypeCartaConstitucional,
	"Revisão Constitucional":                     TypeConstitutionalRevision,
	"Tratado":                                    TypeTratado,
	"Convenção":                                  TypeConvencao,
	"Acordo":                                     TypeAcordo,
	"Protocolo":                                  TypeProtocolo,
	"Protocolo de acordo":                        TypeProtocolo,
	"Regulamento":                                TypeRegulamento,
	"Regimento":                                  TypeRegimento,
	"Instrução":                                  TypeInstrucao,
	"Circular":                                   TypeCircular,
	"Deliberação":                                TypeDeliberacao,
	"Decisão":                                    TypeDecisao,
	"Declaração":                                 TypeDeclaracao,
	"Declaração de Retificação":                  TypeDeclaracaoRetificacao,
	"Errata":                                     TypeErrata,
	"Comunicação":                                TypeComunicacao,
	"Anúncio":                                    TypeAnuncio,
	"Moção":                                      TypeMocao,
	"Moção de Confiança":                         TypeMocaoConfianca,
	"Moção de Censura":                           TypeMocaoCensura,
	"Parecer":                                    TypeParecer,
	"Programa":                                   TypePrograma,
	"Carta de Adesão":                            TypeCartaAdesao,
	"Carta de Ratificação":                       TypeCartaRatificacao,
	"Contrato":                                   TypeContrato,
	"Aditamento":                                 TypeAditamento,
	"Alteração":                                  TypeAlteracao,
	"Lista":                                      TypeLista,
	"Mapa":                                       TypeMapa,
	"Mapa Oficial":                               TypeMapaOficial,
}

// englishNames are accepted on input but never used as canonical names.
var englishNames = map[string]Type{
	"Constitution": TypeConstitution,
	"Decree-Law":   TypeDecretoLei,
	"Law":          TypeLei,
	"Decree":       TypeDecreto,
	"Ordinance":    TypePortaria,
	"Resolution":   TypeResolucao,
	"Regulation":   TypeRegulamento,
	"Treaty":       TypeTratado,
	"Agreement":    TypeAcordo,
}

// ptNames is the canonical Portuguese name per type, used when synthesising
// official numbers ("Decreto-Lei n.º 30/2017"). The shortest alias wins.
var ptNames = map[Type]string{}

// typeIndex is the union of both tables re-keyed by typeKey.
var typeIndex = map[string]Type{}

func init() {
	for name, t := range typeNames {
		typeIndex[typeKey(name)] = t
		if cur, ok := ptNames[t]; !ok || len(name) < len(cur) {
			ptNames[t] = name
		}
	}
	for name, t := range englishNames {
		typeIndex[typeKey(name)] = t
	}
}

// AllTypes returns every member of the enumeration, TypeOther included.
func AllTypes() []Type {
	seen := map[Type]bool{TypeOther: true}
	out := []Type{TypeOther}
	for _, t := range typeNames {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// TypeNames returns the free-text names known to the classifier.
func TypeNames() []string {
	out := make([]string, 0, len(typeNames)+len(englishNames))
	for name := range typeNames {
		out = append(out, name)
	}
	for name := range englishNames {
		out = append(out, name)
	}
	return out
}

// ClassifyType maps a free-text law type to the enumeration. The lookup is
// case- and accent-insensitive; an enumeration value passed in verbatim
// ("DECRETO_LEI") is accepted too. Unknown input yields TypeOther.
func ClassifyType(s string) Type {
	key := typeKey(s)
	if key == "" {
		return TypeOther
	}
	if t, ok := typeIndex[key]; ok {
		return t
	}
	upper := Type(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range typeNames {
		if t == upper {
			return t
		}
	}
	return TypeOther
}

// PTName returns the canonical Portuguese name of a type, or "" for TypeOther.
func PTName(t Type) string {
	return ptNames[t]
}

// typeKey normalises a type name for lookup.
func typeKey(s string) string {
	s = strings.ToLower(Fold(s))
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}
