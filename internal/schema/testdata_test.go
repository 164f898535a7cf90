package schema_test

const coreSchema = `<?xml version="1.0" encoding="UTF-8"?>
<XMLDB PATH="lib/db" VERSION="2008120100" COMMENT="core tables">
  <TABLES>
    <TABLE NAME="course" COMMENT="courses">
      <FIELDS>
        <FIELD NAME="id" TYPE="int" LENGTH="10" NOTNULL="true" SEQUENCE="true"/>
        <FIELD NAME="category" TYPE="int" LENGTH="10" NOTNULL="true" SEQUENCE="false" DEFAULT="0"/>
        <FIELD NAME="fullname" TYPE="char" LENGTH="254" NOTNULL="true" SEQUENCE="false"/>
        <FIELD NAME="summary" TYPE="text" NOTNULL="false" SEQUENCE="false"/>
        <FIELD NAME="cost" TYPE="number" LENGTH="10" DECIMALS="2" NOTNULL="false" SEQUENCE="false"/>
      </FIELDS>
      <KEYS>
        <KEY NAME="primary" TYPE="primary" FIELDS="id"/>
        <KEY NAME="category" TYPE="foreign" FIELDS="category" REFTABLE="course_categories" REFFIELDS="id"/>
      </KEYS>
      <INDEXES>
        <INDEX NAME="fullname" UNIQUE="false" FIELDS="fullname"/>
      </INDEXES>
    </TABLE>
    <TABLE NAME="course_categories" COMMENT="categories">
      <FIELDS>
        <FIELD NAME="id" TYPE="int" LENGTH="10" NOTNULL="true" SEQUENCE="true"/>
        <FIELD NAME="name" TYPE="char" LENGTH="255" NOTNULL="true" SEQUENCE="false"/>
        <FIELD NAME="parent" TYPE="int" LENGTH="10" NOTNULL="true" SEQUENCE="false" DEFAULT="0"/>
      </FIELDS>
      <KEYS>
        <KEY NAME="primary" TYPE="primary" FIELDS="id"/>
        <KEY NAME="parent" TYPE="foreign" FIELDS="parent" REFTABLE="course_categories" REFFIELDS="id"/>
      </KEYS>
      <INDEXES>
        <INDEX NAME="name_parent" UNIQUE="true" FIELDS="name, parent"/>
      </INDEXES>
    </TABLE>
    <TABLE NAME="config">
      <FIELDS>
        <FIELD NAME="name" TYPE="char" LENGTH="255" NOTNULL="true"/>
        <FIELD NAME="value" TYPE="text" NOTNULL="false"/>
      </FIELDS>
      <KEYS>
        <KEY NAME="primary" TYPE="primary" FIELDS="name"/>
      </KEYS>
    </TABLE>
  </TABLES>
</XMLDB>
`
